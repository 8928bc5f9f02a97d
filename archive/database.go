package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/did-method-hcs/go-didevent"
	slogGorm "github.com/orandin/slog-gorm"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EventRecord is one archived event message. ID preserves append order.
type EventRecord struct {
	ID        uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	DID       string `gorm:"column:did;not null;uniqueIndex:idx_events_did_cid,priority:1"`
	CID       string `gorm:"column:cid;not null;uniqueIndex:idx_events_did_cid,priority:2"`
	Operation string `gorm:"column:operation;not null"`
	Payload   string `gorm:"column:payload;not null"`
	// kept as the original string: the entry CID covers its exact spelling
	Timestamp string `gorm:"column:timestamp;not null"`
}

func (EventRecord) TableName() string {
	return "events"
}

func (r *EventRecord) logEntry() *didevent.LogEntry {
	return &didevent.LogEntry{
		DID:       r.DID,
		Operation: didevent.Operation(r.Operation),
		Event:     r.Payload,
		CID:       r.CID,
		CreatedAt: r.Timestamp,
	}
}

// for tracking the import cursor of each source file
type ImportCursor struct {
	Source string `gorm:"primaryKey"`
	Seq    int64  `gorm:"not null"`
}

// GormEventStore implements didevent.EventStore using a database backend
type GormEventStore struct {
	db *gorm.DB
}

var _ didevent.EventStore = (*GormEventStore)(nil)

// NewGormEventStoreWithDialector creates a new database-backed event store with a custom dialector
func NewGormEventStoreWithDialector(dialector gorm.Dialector, logger *slog.Logger) (*GormEventStore, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger: slogGorm.New(
			slogGorm.WithHandler(logger.With("component", "eventstore").Handler()),
			slogGorm.WithTraceAll(),
			slogGorm.SetLogLevel(slogGorm.DefaultLogType, slog.LevelDebug),
			slogGorm.SetLogLevel(slogGorm.SlowQueryLogType, slog.LevelWarn),
			slogGorm.SetLogLevel(slogGorm.ErrorLogType, slog.LevelError),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&EventRecord{}, &ImportCursor{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return &GormEventStore{
		db: db,
	}, nil
}

func NewGormEventStoreWithSqlite(dbPath string, logger *slog.Logger) (*GormEventStore, error) {
	return NewGormEventStoreWithDialector(
		sqlite.Open(dbPath+"?mode=rwc&cache=shared&_journal_mode=WAL"),
		logger,
	)
}

func NewGormEventStoreWithPostgres(dsn string, logger *slog.Logger) (*GormEventStore, error) {
	if _, err := url.Parse(dsn); err != nil {
		return nil, fmt.Errorf("failed to parse postgres URL: %w", err)
	}
	return NewGormEventStoreWithDialector(
		postgres.Open(dsn),
		logger,
	)
}

// Close releases the underlying connection pool.
func (s *GormEventStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetEntry implements didevent.EventStore
func (s *GormEventStore) GetEntry(ctx context.Context, did string, cid string) (*didevent.LogEntry, error) {
	var rec EventRecord
	result := s.db.WithContext(ctx).Where("did = ? AND cid = ?", did, cid).Take(&rec)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("database error: %w", result.Error)
	}
	return rec.logEntry(), nil
}

// GetEntries implements didevent.EventStore
func (s *GormEventStore) GetEntries(ctx context.Context, did string) ([]*didevent.LogEntry, error) {
	var recs []EventRecord
	result := s.db.WithContext(ctx).Where("did = ?", did).Order("id ASC").Find(&recs)
	if result.Error != nil {
		return nil, fmt.Errorf("database error: %w", result.Error)
	}

	entries := make([]*didevent.LogEntry, 0, len(recs))
	for i := range recs {
		entries = append(entries, recs[i].logEntry())
	}
	return entries, nil
}

// AppendEntries implements didevent.EventStore
func (s *GormEventStore) AppendEntries(ctx context.Context, entries []*didevent.LogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		recs := make([]EventRecord, 0, len(entries))
		batchCIDs := make(map[string]bool, len(entries))
		for _, le := range entries {
			if batchCIDs[le.DID+" "+le.CID] {
				return fmt.Errorf("%w: %s %s", didevent.ErrDuplicateEntry, le.DID, le.CID)
			}
			batchCIDs[le.DID+" "+le.CID] = true

			var count int64
			if err := tx.Model(&EventRecord{}).Where("did = ? AND cid = ?", le.DID, le.CID).Count(&count).Error; err != nil {
				return fmt.Errorf("failed to check for existing entry: %w", err)
			}
			if count > 0 {
				return fmt.Errorf("%w: %s %s", didevent.ErrDuplicateEntry, le.DID, le.CID)
			}
			recs = append(recs, EventRecord{
				DID:       le.DID,
				CID:       le.CID,
				Operation: string(le.Operation),
				Payload:   le.Event,
				Timestamp: le.CreatedAt,
			})
		}

		if err := tx.Create(&recs).Error; err != nil {
			// concurrent writers
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("%w: %v", didevent.ErrDuplicateEntry, err)
			}
			return fmt.Errorf("failed to create events: %w", err)
		}
		return nil
	})
}

// CountDIDs returns the number of distinct DIDs with archived history.
func (s *GormEventStore) CountDIDs(ctx context.Context) (int64, error) {
	var count int64
	result := s.db.WithContext(ctx).Model(&EventRecord{}).Distinct("did").Count(&count)
	return count, result.Error
}

func (s *GormEventStore) PutCursor(ctx context.Context, source string, seq int64) error {
	// upsert
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		UpdateAll: true,
	}).Create(&ImportCursor{
		Source: source,
		Seq:    seq,
	})
	return result.Error
}

// returns 0 if not found (since new sources should start from the first line)
func (s *GormEventStore) GetCursor(ctx context.Context, source string) (int64, error) {
	var cursor ImportCursor
	result := s.db.WithContext(ctx).Where("source = ?", source).Take(&cursor)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if result.Error != nil {
		return 0, result.Error
	}
	return cursor.Seq, nil
}
