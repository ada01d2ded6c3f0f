// Package clients manages payment-collection details keyed by a client's base URL.
package clients

// ClientRecord is the persisted state for one base URL. The secret hash is
// storage-only and never serialized into responses.
type ClientRecord struct {
	BaseURL     string `dynamodbav:"baseUrl" json:"baseUrl"`
	UPIID       string `dynamodbav:"upiId" json:"upiId"`
	QRImagePath string `dynamodbav:"qrImagePath" json:"qrImagePath"`
	SecretHash  string `dynamodbav:"secretHash" json:"-"`
	CreatedAt   string `dynamodbav:"createdAt" json:"createdAt"`
	UpdatedAt   string `dynamodbav:"updatedAt" json:"updatedAt"`
}

// PublicDetails is the subset of a record that may appear in responses.
type PublicDetails struct {
	BaseURL     string `json:"baseUrl"`
	UPIID       string `json:"upiId"`
	QRImagePath string `json:"qrImagePath"`
}

// Public strips the record down to its response-safe fields.
func (r *ClientRecord) Public() PublicDetails {
	return PublicDetails{
		BaseURL:     r.BaseURL,
		UPIID:       r.UPIID,
		QRImagePath: r.QRImagePath,
	}
}

// UpdateFields carries the partial update for an existing record. Nil fields
// are left untouched.
type UpdateFields struct {
	UPIID       *string
	QRImagePath *string
	SecretHash  *string
}
