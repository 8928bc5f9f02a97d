package main

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/bluesky-social/indigo/atproto/syntax"
	"github.com/did-method-hcs/go-didevent"

	"github.com/urfave/cli/v3"
)

func main() {
	app := cli.Command{
		Name:  "didevent",
		Usage: "build, decode, and verify DID document events",
	}
	app.Commands = []*cli.Command{
		{
			Name:   "keygen",
			Usage:  "generate a fresh Ed25519 key; prints the private seed (hex) and the public key (multibase)",
			Action: runKeyGen,
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "seed",
					Usage:   "derive the public key from an existing private seed (hex) instead",
					Sources: cli.EnvVars("DIDEVENT_PRIVATE_SEED"),
				},
			},
		},
		{
			Name:  "encode",
			Usage: "build an event and print it",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "operation",
					Usage: "one of 'create', 'update', or 'revoke'",
					Value: "create",
				},
				&cli.StringFlag{
					Name:  "output",
					Usage: "one of 'tree', 'json', 'base64', or 'entry' (log entry with CID, at the current time)",
					Value: "json",
				},
			},
			Commands: []*cli.Command{
				{
					Name:   "verification-method",
					Usage:  "verification method event",
					Action: runEncodeVerificationMethod,
					Flags:  append(idFlags(), keyFlags()...),
				},
				{
					Name:   "service",
					Usage:  "service event",
					Action: runEncodeService,
					Flags: append(idFlags(),
						&cli.StringFlag{
							Name:  "type",
							Usage: "service type",
							Value: didevent.ServiceTypeLinkedDomains,
						},
						&cli.StringFlag{
							Name:  "endpoint",
							Usage: "service endpoint URL",
						},
					),
				},
				{
					Name:   "relationship",
					Usage:  "verification relationship event",
					Action: runEncodeRelationship,
					Flags: append(append(idFlags(), keyFlags()...),
						&cli.StringFlag{
							Name:  "relationship-type",
							Usage: "one of 'authentication', 'assertionMethod', 'keyAgreement', 'capabilityInvocation', 'capabilityDelegation'",
							Value: didevent.RelationshipAuthentication,
						},
					),
				},
				{
					Name:   "owner",
					Usage:  "DID owner event (create only)",
					Action: runEncodeOwner,
					Flags:  append(idFlags(), keyFlags()...),
				},
			},
		},
		{
			Name:      "decode",
			Usage:     "decode a base64 event payload and print its JSON tree",
			ArgsUsage: "<base64 | ->",
			Action:    runDecode,
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "operation",
					Usage:    "operation the event was published under",
					Required: true,
				},
			},
		},
		{
			Name:      "verify",
			Usage:     "verify a DID's event log (JSON array of log entries)",
			ArgsUsage: "<file | ->",
			Action:    runVerify,
		},
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
	slog.SetDefault(slog.New(h))
	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Println("Error:", err)
		os.Exit(-1)
	}
}

func idFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "id",
			Usage:    "event subject id, eg '{did}#key-1'",
			Required: true,
		},
	}
}

func keyFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "controller",
			Usage: "controller DID (defaults to the DID of --id)",
		},
		&cli.StringFlag{
			Name:  "public-key",
			Usage: "public key (multibase syntax)",
		},
		&cli.StringFlag{
			Name:    "seed",
			Usage:   "private seed (hex) to derive the public key from, if --public-key is not set",
			Sources: cli.EnvVars("DIDEVENT_PRIVATE_SEED"),
		},
	}
}

func parseSeed(s string) (ed25519.PrivateKey, error) {
	seed, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid seed: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("invalid seed: expected %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return ed25519.NewKeyFromSeed(seed), nil
}

func publicKeyFromFlags(cmd *cli.Command) (ed25519.PublicKey, error) {
	if s := cmd.String("public-key"); s != "" {
		return didevent.DecodePublicKeyMultibase(s)
	}
	if s := cmd.String("seed"); s != "" {
		priv, err := parseSeed(s)
		if err != nil {
			return nil, err
		}
		return priv.Public().(ed25519.PublicKey), nil
	}
	return nil, fmt.Errorf("one of --public-key or --seed is required")
}

func controllerFromFlags(cmd *cli.Command) string {
	if c := cmd.String("controller"); c != "" {
		return c
	}
	return didevent.SubjectDID(cmd.String("id"))
}

func operationFromFlags(cmd *cli.Command) (didevent.Operation, error) {
	return didevent.ParseOperation(cmd.String("operation"))
}

func printEvent(cmd *cli.Command, ev didevent.Event) error {
	switch cmd.String("output") {
	case "tree":
		b, err := json.MarshalIndent(ev.JSONTree(), "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(b))
	case "json":
		fmt.Println(ev.JSON())
	case "base64":
		fmt.Println(ev.Base64())
	case "entry":
		le := didevent.NewLogEntry(ev, syntax.DatetimeNow())
		b, err := json.Marshal(le)
		if err != nil {
			return err
		}
		fmt.Println(string(b))
	default:
		return fmt.Errorf("unknown output format: %s", cmd.String("output"))
	}
	return nil
}

func runKeyGen(ctx context.Context, cmd *cli.Command) error {
	var priv ed25519.PrivateKey
	if s := cmd.String("seed"); s != "" {
		p, err := parseSeed(s)
		if err != nil {
			return err
		}
		priv = p
	} else {
		_, p, err := ed25519.GenerateKey(nil)
		if err != nil {
			return err
		}
		priv = p
	}

	fmt.Println(hex.EncodeToString(priv.Seed()))
	fmt.Println(didevent.EncodePublicKeyMultibase(priv.Public().(ed25519.PublicKey)))
	return nil
}

func runEncodeVerificationMethod(ctx context.Context, cmd *cli.Command) error {
	op, err := operationFromFlags(cmd)
	if err != nil {
		return err
	}
	id := cmd.String("id")

	var ev didevent.Event
	switch op {
	case didevent.OperationRevoke:
		ev, err = didevent.NewRevokeVerificationMethodEvent(id)
	default:
		pub, perr := publicKeyFromFlags(cmd)
		if perr != nil {
			return perr
		}
		if op == didevent.OperationCreate {
			ev, err = didevent.NewCreateVerificationMethodEvent(id, didevent.Ed25519VerificationKey2018, controllerFromFlags(cmd), pub)
		} else {
			ev, err = didevent.NewUpdateVerificationMethodEvent(id, didevent.Ed25519VerificationKey2018, controllerFromFlags(cmd), pub)
		}
	}
	if err != nil {
		return err
	}
	return printEvent(cmd, ev)
}

func runEncodeService(ctx context.Context, cmd *cli.Command) error {
	op, err := operationFromFlags(cmd)
	if err != nil {
		return err
	}
	id := cmd.String("id")

	var ev didevent.Event
	switch op {
	case didevent.OperationCreate:
		ev, err = didevent.NewCreateServiceEvent(id, cmd.String("type"), cmd.String("endpoint"))
	case didevent.OperationUpdate:
		ev, err = didevent.NewUpdateServiceEvent(id, cmd.String("type"), cmd.String("endpoint"))
	case didevent.OperationRevoke:
		ev, err = didevent.NewRevokeServiceEvent(id)
	}
	if err != nil {
		return err
	}
	return printEvent(cmd, ev)
}

func runEncodeRelationship(ctx context.Context, cmd *cli.Command) error {
	op, err := operationFromFlags(cmd)
	if err != nil {
		return err
	}
	id := cmd.String("id")
	relType := cmd.String("relationship-type")

	var ev didevent.Event
	switch op {
	case didevent.OperationRevoke:
		ev, err = didevent.NewRevokeVerificationRelationshipEvent(id, relType)
	default:
		pub, perr := publicKeyFromFlags(cmd)
		if perr != nil {
			return perr
		}
		if op == didevent.OperationCreate {
			ev, err = didevent.NewCreateVerificationRelationshipEvent(id, relType, didevent.Ed25519VerificationKey2018, controllerFromFlags(cmd), pub)
		} else {
			ev, err = didevent.NewUpdateVerificationRelationshipEvent(id, relType, didevent.Ed25519VerificationKey2018, controllerFromFlags(cmd), pub)
		}
	}
	if err != nil {
		return err
	}
	return printEvent(cmd, ev)
}

func runEncodeOwner(ctx context.Context, cmd *cli.Command) error {
	op, err := operationFromFlags(cmd)
	if err != nil {
		return err
	}
	if op != didevent.OperationCreate {
		return fmt.Errorf("DID owner events only support the create operation")
	}
	pub, err := publicKeyFromFlags(cmd)
	if err != nil {
		return err
	}
	ev, err := didevent.NewCreateDIDOwnerEvent(cmd.String("id"), controllerFromFlags(cmd), pub)
	if err != nil {
		return err
	}
	return printEvent(cmd, ev)
}

// reads the named file, or stdin for "-"
func readInput(name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(name)
}

func runDecode(ctx context.Context, cmd *cli.Command) error {
	s := cmd.Args().First()
	if s == "" {
		return fmt.Errorf("need to provide a base64 event payload as an argument")
	}
	if s == "-" {
		b, err := readInput(s)
		if err != nil {
			return err
		}
		s = strings.TrimSpace(string(b))
	}

	op, err := operationFromFlags(cmd)
	if err != nil {
		return err
	}
	ev, err := didevent.ParseEventBase64(op, s)
	if err != nil {
		return err
	}

	jsonBytes, err := json.MarshalIndent(ev.JSONTree(), "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(jsonBytes))
	return nil
}

func runVerify(ctx context.Context, cmd *cli.Command) error {
	s := cmd.Args().First()
	if s == "" {
		return fmt.Errorf("need to provide an event log file as an argument")
	}

	b, err := readInput(s)
	if err != nil {
		return err
	}
	var entries []didevent.LogEntry
	if err := json.Unmarshal(b, &entries); err != nil {
		return fmt.Errorf("invalid event log: %w", err)
	}

	if err := didevent.VerifyEventLog(entries); err != nil {
		return err
	}

	fmt.Println("valid")
	return nil
}
