// Package docstore is the authoritative store for messages, templates,
// and transactions, plus the system_configuration/user_preferences
// collections named in the external interface surface.
package docstore

import "time"

// MessageStatus is the processing-state lifecycle tag for a Message.
type MessageStatus string

const (
	StatusNew             MessageStatus = "NEW"
	StatusEmbedded        MessageStatus = "EMBEDDED"
	StatusClustered       MessageStatus = "CLUSTERED"
	StatusTemplateMatched MessageStatus = "TEMPLATE_MATCHED"
	StatusProcessed       MessageStatus = "PROCESSED"
	StatusError           MessageStatus = "ERROR"
)

// TransactionStatus is the lifecycle tag for a Transaction.
type TransactionStatus string

const (
	TxPending   TransactionStatus = "PENDING"
	TxMatched   TransactionStatus = "MATCHED"
	TxValidated TransactionStatus = "VALIDATED"
	TxApproved  TransactionStatus = "APPROVED"
	TxRejected  TransactionStatus = "REJECTED"
	TxCompleted TransactionStatus = "COMPLETED"
)

// VariableFieldType classifies how a template's variable field varies.
type VariableFieldType string

const (
	FieldAmount      VariableFieldType = "AMOUNT"
	FieldDate        VariableFieldType = "DATE"
	FieldNumeric     VariableFieldType = "NUMERIC"
	FieldCode        VariableFieldType = "CODE"
	FieldAlphaNumeric VariableFieldType = "ALPHANUMERIC"
	FieldText        VariableFieldType = "TEXT"
)

// Message is a single ingested SWIFT MT7xx message.
type Message struct {
	ID         string
	Type       string
	RawContent string
	Fields     map[string]string
	SenderID   string
	ReceiverID string
	Timestamp  time.Time
	Status     MessageStatus
	ClusterID  string
	TemplateID string
}

// VariableField describes one position of a Template that varies
// across its member messages.
type VariableField struct {
	Tag          string
	FieldName    string
	Type         VariableFieldType
	SampleValues []string
	Required     bool
}

// Template is a derived recurring-shape artifact for a trading pair.
type Template struct {
	ID                string
	Type              string
	BuyerID           string
	SellerID          string
	TemplateContent   string
	VariableFields    []VariableField
	ClusterID         string
	CentroidEmbedding []float32
	MessageCount      int
	Confidence        float64
	Description       string
	CreatedAt         time.Time
}

// MatchingDetails records how a Transaction was matched to its
// template.
type MatchingDetails struct {
	PrimaryTemplateID string
	FieldConfidences  map[string]float64
	Warnings          []string
	Suggestions       []string
}

// Transaction is the structured record produced by matching a message
// against a template.
type Transaction struct {
	ID               string
	SwiftMessageID   string
	TemplateID       string
	Type             string
	ExtractedData    map[string]string
	UserEnteredData  map[string]string
	MatchConfidence  float64
	MatchingDetails  MatchingDetails
	Status           TransactionStatus
	BuyerID          string
	SellerID         string
	StructuredAnalysis *string
	ProcessedAt      time.Time
	Metadata         map[string]string
	AuditTrail       []string
}
