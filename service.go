package didevent

const serviceSection = "Services"

// Service types understood by resolvers of these documents.
const (
	ServiceTypeLinkedDomains    = "LinkedDomains"
	ServiceTypeDIDCommMessaging = "DIDCommMessaging"
)

// ServiceData is the body of a Service event tree.
type ServiceData struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	ServiceEndpoint string `json:"serviceEndpoint"`
}

func (d *ServiceData) Validate() error {
	if d.ID == "" || d.Type == "" || d.ServiceEndpoint == "" {
		return missingArgs(serviceSection)
	}
	if !ValidateServiceID(d.ID) {
		return errInvalidServiceID
	}
	return nil
}

type service struct {
	data ServiceData
}

func newService(id, typ, endpoint string) (service, error) {
	data := ServiceData{ID: id, Type: typ, ServiceEndpoint: endpoint}
	if err := data.Validate(); err != nil {
		return service{}, err
	}
	return service{data: data}, nil
}

func (s *service) TargetName() TargetName {
	return TargetService
}

func (s *service) ID() string {
	return s.data.ID
}

func (s *service) Type() string {
	return s.data.Type
}

func (s *service) ServiceEndpoint() string {
	return s.data.ServiceEndpoint
}

func (s *service) JSONTree() EventTree {
	return EventTree{TargetService: s.data}
}

func (s *service) JSON() string {
	return treeJSON(s.JSONTree())
}

func (s *service) Base64() string {
	return treeBase64(s.JSONTree())
}

// CreateServiceEvent adds a service endpoint to a DID document. The id must have the form
// "{did}#service-{integer}".
type CreateServiceEvent struct {
	service
}

var _ Event = (*CreateServiceEvent)(nil)

func NewCreateServiceEvent(id, typ, endpoint string) (*CreateServiceEvent, error) {
	s, err := newService(id, typ, endpoint)
	if err != nil {
		return nil, err
	}
	return &CreateServiceEvent{s}, nil
}

func CreateServiceEventFromJSONTree(data ServiceData) *CreateServiceEvent {
	return &CreateServiceEvent{service{data: data}}
}

func (e *CreateServiceEvent) Operation() Operation {
	return OperationCreate
}

type UpdateServiceEvent struct {
	service
}

var _ Event = (*UpdateServiceEvent)(nil)

func NewUpdateServiceEvent(id, typ, endpoint string) (*UpdateServiceEvent, error) {
	s, err := newService(id, typ, endpoint)
	if err != nil {
		return nil, err
	}
	return &UpdateServiceEvent{s}, nil
}

func UpdateServiceEventFromJSONTree(data ServiceData) *UpdateServiceEvent {
	return &UpdateServiceEvent{service{data: data}}
}

func (e *UpdateServiceEvent) Operation() Operation {
	return OperationUpdate
}

type RevokeServiceData struct {
	ID string `json:"id"`
}

func (d *RevokeServiceData) Validate() error {
	if d.ID == "" {
		return missingArgs(serviceSection)
	}
	if !ValidateServiceID(d.ID) {
		return errInvalidServiceID
	}
	return nil
}

type RevokeServiceEvent struct {
	data RevokeServiceData
}

var _ Event = (*RevokeServiceEvent)(nil)

func NewRevokeServiceEvent(id string) (*RevokeServiceEvent, error) {
	data := RevokeServiceData{ID: id}
	if err := data.Validate(); err != nil {
		return nil, err
	}
	return &RevokeServiceEvent{data: data}, nil
}

func RevokeServiceEventFromJSONTree(data RevokeServiceData) *RevokeServiceEvent {
	return &RevokeServiceEvent{data: data}
}

func (e *RevokeServiceEvent) TargetName() TargetName {
	return TargetService
}

func (e *RevokeServiceEvent) Operation() Operation {
	return OperationRevoke
}

func (e *RevokeServiceEvent) ID() string {
	return e.data.ID
}

func (e *RevokeServiceEvent) JSONTree() EventTree {
	return EventTree{TargetService: e.data}
}

func (e *RevokeServiceEvent) JSON() string {
	return treeJSON(e.JSONTree())
}

func (e *RevokeServiceEvent) Base64() string {
	return treeBase64(e.JSONTree())
}
