package wsse

import (
	"crypto/md5"
	"encoding/hex"
	"time"

	"github.com/beevik/etree"
	"github.com/google/uuid"

	"github.com/sirosfoundation/go-wsse/pkg/xmlsec"
)

// TimeLayout is the wire profile for security timestamps: UTC with
// second precision and no fractional digits.
const TimeLayout = "2006-01-02T15:04:05Z"

// DefaultTimestampValidity is how long a timestamp stays fresh when the
// policy does not say otherwise.
const DefaultTimestampValidity = 90 * time.Second

// Token is a security claim rendered into the wsse:Security header. The
// set of implementations is closed: UsernameToken and Timestamp. XML is
// deterministic given the token's fields.
type Token interface {
	XML() *etree.Element

	token()
}

// UsernameToken carries username/password credentials. Nonce and
// Created are omitted from the XML until set.
type UsernameToken struct {
	Username string
	Password string
	Nonce    string
	Created  time.Time
}

// NewUsernameToken returns a token with only the credentials set.
func NewUsernameToken(username, password string) *UsernameToken {
	return &UsernameToken{Username: username, Password: password}
}

// SetNonce sets the token's nonce. An empty value derives one by
// hashing the credentials with the current UTC time. The derived form
// is not cryptographically random (same-second calls collide); callers
// that need replay protection must supply an externally generated
// nonce.
func (t *UsernameToken) SetNonce(nonce string) {
	if nonce == "" {
		sum := md5.Sum([]byte(t.Username + ":" + t.Password + ":" + time.Now().UTC().Format(TimeLayout)))
		nonce = hex.EncodeToString(sum[:])
	}
	t.Nonce = nonce
}

// SetCreated stamps the token. The zero time means now.
func (t *UsernameToken) SetCreated(at time.Time) {
	if at.IsZero() {
		at = time.Now()
	}
	t.Created = at.UTC()
}

// XML renders the token. Children appear in the fixed order Username,
// Password, Nonce, Created.
func (t *UsernameToken) XML() *etree.Element {
	root := etree.NewElement("wsse:UsernameToken")

	username := root.CreateElement("wsse:Username")
	username.SetText(t.Username)
	password := root.CreateElement("wsse:Password")
	password.SetText(t.Password)

	if t.Nonce != "" {
		nonce := root.CreateElement("wsse:Nonce")
		nonce.SetText(t.Nonce)
	}
	if !t.Created.IsZero() {
		created := root.CreateElement("wsu:Created")
		created.SetText(t.Created.UTC().Format(TimeLayout))
	}
	return root
}

func (t *UsernameToken) token() {}

// Timestamp bounds a message's validity window. Created is stamped at
// construction; Expires is Created plus the validity.
type Timestamp struct {
	ID      string
	Created time.Time
	Expires time.Time
}

// NewTimestamp returns a timestamp valid from now. A zero or negative
// validity falls back to DefaultTimestampValidity.
func NewTimestamp(validity time.Duration) *Timestamp {
	if validity <= 0 {
		validity = DefaultTimestampValidity
	}
	created := time.Now().UTC()
	return &Timestamp{
		ID:      "TS-" + uuid.NewString(),
		Created: created,
		Expires: created.Add(validity),
	}
}

// XML renders the timestamp. The wire profile has no fractional
// seconds, so both instants are truncated.
func (t *Timestamp) XML() *etree.Element {
	root := etree.NewElement("wsu:Timestamp")
	if t.ID != "" {
		root.CreateAttr("wsu:Id", t.ID)
	}

	created := root.CreateElement("wsu:Created")
	created.SetText(t.Created.UTC().Format(TimeLayout))
	expires := root.CreateElement("wsu:Expires")
	expires.SetText(t.Expires.UTC().Format(TimeLayout))
	return root
}

func (t *Timestamp) token() {}
