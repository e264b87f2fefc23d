package core

import "time"

// PayloadVersion is the only message version the service issues and accepts
const PayloadVersion = "1"

// LoginPayload is the challenge a wallet signs to prove control of an address
type LoginPayload struct {
	Domain         string     `json:"domain"`
	Address        string     `json:"address"`
	ChainID        *uint64    `json:"chainId,omitempty"`
	Nonce          string     `json:"nonce"`
	IssuedAt       time.Time  `json:"issuedAt"`
	ExpirationTime time.Time  `json:"expirationTime"`
	NotBefore      *time.Time `json:"notBefore,omitempty"`
	Statement      string     `json:"statement,omitempty"`
	URI            string     `json:"uri"`
	Version        string     `json:"version"`
	Resources      []string   `json:"resources,omitempty"`
}

// VerifiedIdentity is the outcome of a successful signature verification
type VerifiedIdentity struct {
	Address string  // Checksummed address recovered from the signature
	ChainID *uint64 // Chain the payload was bound to, if any
}

// Session represents an authenticated session carried by a token
type Session struct {
	ID        string    // Token ID (jti)
	Address   string    // Ethereum address of the user
	ChainID   *uint64   // Chain context captured at login
	IssuedAt  time.Time // When the session was created
	ExpiresAt time.Time // When the session token expires
}

// Identity is a user record owned by the identity store
type Identity struct {
	ID          string    `json:"id"`
	Address     string    `json:"address"`
	DisplayName string    `json:"displayName"`
	Email       string    `json:"email,omitempty"`
	AvatarURL   string    `json:"avatarUrl,omitempty"`
	Bio         string    `json:"bio,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Profile holds optional identity fields; nil means "leave unchanged" or "use the default"
type Profile struct {
	DisplayName *string `json:"displayName,omitempty"`
	Email       *string `json:"email,omitempty"`
	AvatarURL   *string `json:"avatarUrl,omitempty"`
	Bio         *string `json:"bio,omitempty"`
}

// Apply copies every non-nil field of p onto identity
func (p Profile) Apply(identity *Identity) {
	if p.DisplayName != nil {
		identity.DisplayName = *p.DisplayName
	}
	if p.Email != nil {
		identity.Email = *p.Email
	}
	if p.AvatarURL != nil {
		identity.AvatarURL = *p.AvatarURL
	}
	if p.Bio != nil {
		identity.Bio = *p.Bio
	}
}

// IsEmpty reports whether no field is set
func (p Profile) IsEmpty() bool {
	return p.DisplayName == nil && p.Email == nil && p.AvatarURL == nil && p.Bio == nil
}
