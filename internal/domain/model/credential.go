package model

import "time"

// Credential binds an owner identity to a salted, non-reversible verifier of a
// bearer token. The plaintext token is never part of this record.
type Credential struct {
	ID         int64
	Owner      string
	Prefix     string
	Hash       []byte
	Salt       []byte
	Iterations int
	IssuedAt   time.Time
}

// Info returns the display view of the credential.
func (c Credential) Info() CredentialInfo {
	return CredentialInfo{
		ID:       c.ID,
		Owner:    c.Owner,
		Prefix:   c.Prefix,
		IssuedAt: c.IssuedAt,
	}
}

// CredentialInfo is the listing view of a credential. It never carries hash
// or salt bytes.
type CredentialInfo struct {
	ID       int64
	Owner    string
	Prefix   string
	IssuedAt time.Time
}

// IssuedToken is returned exactly once, at issuance.
type IssuedToken struct {
	CredentialInfo
	Token string
}

// Principal is the authenticated caller behind a bearer token.
type Principal struct {
	CredentialID int64
	Owner        string
}
