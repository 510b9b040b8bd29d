package server

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"log"
	"strings"

	"github.com/charmbracelet/ssh"
	"github.com/google/uuid"
	"github.com/johan-st/vpin-tui/internal/access"
	"github.com/johan-st/vpin-tui/internal/config"
	gossh "golang.org/x/crypto/ssh"
)

// Authenticator handles SSH authentication.
type Authenticator struct {
	config *config.Config
}

// NewAuthenticator creates a new authenticator.
func NewAuthenticator(cfg *config.Config) *Authenticator {
	return &Authenticator{
		config: cfg,
	}
}

// PublicKeyHandler returns a handler for public key authentication.
func (a *Authenticator) PublicKeyHandler() ssh.PublicKeyHandler {
	return func(ctx ssh.Context, key ssh.PublicKey) bool {
		fingerprint := FingerprintKey(key)

		if user := a.findUserByKey(fingerprint, key); user != nil {
			user.RemoteAddr = ctx.RemoteAddr().String()
			ctx.SetValue(ctxKeyUser, user)
			log.Printf("Authenticated user %s from %s", user.Name, ctx.RemoteAddr())
			return true
		}

		if a.config.KeylessAllowed() || a.config.AnonymousPermission() != access.None {
			anonUser := a.anonymous(ctx, fingerprint)
			log.Printf("Anonymous access from %s as %s", ctx.RemoteAddr(), anonUser.AnonymousName)
			return true
		}

		log.Printf("Authentication failed for key %s from %s", fingerprint, ctx.RemoteAddr())
		return false
	}
}

// KeyboardInteractiveHandler returns a handler for keyboard-interactive auth.
func (a *Authenticator) KeyboardInteractiveHandler() ssh.KeyboardInteractiveHandler {
	return func(ctx ssh.Context, challenger gossh.KeyboardInteractiveChallenge) bool {
		if !a.config.KeylessAllowed() {
			return false
		}
		anonUser := a.anonymous(ctx, "")
		log.Printf("Anonymous keyboard-interactive access from %s as %s", ctx.RemoteAddr(), anonUser.AnonymousName)
		return true
	}
}

func (a *Authenticator) anonymous(ctx ssh.Context, fingerprint string) *access.UserInfo {
	user := &access.UserInfo{
		IsAnonymous:   true,
		AnonymousName: GuestName(fingerprint),
		PublicKeyFP:   fingerprint,
		RemoteAddr:    ctx.RemoteAddr().String(),
	}
	ctx.SetValue(ctxKeyUser, user)
	return user
}

// departments name anonymous guests, e.g. "guest-comp-0042".
var departments = []string{
	"anim", "comp", "cfx", "env", "fx", "groom", "layout", "lighting",
	"lookdev", "matchmove", "model", "paint", "previs", "rig", "roto", "td",
}

var guestNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("vpin-tui/guest"))

// GuestName returns the display name of an anonymous caller. A key always
// maps to the same name, so its revisions stay attributable across
// sessions. Keyless callers get a random name.
func GuestName(fingerprint string) string {
	id := uuid.New()
	if fingerprint != "" {
		id = uuid.NewSHA1(guestNamespace, []byte(fingerprint))
	}
	dept := departments[int(id[0])%len(departments)]
	shot := binary.BigEndian.Uint16(id[1:3]) % 10000
	return fmt.Sprintf("guest-%s-%04d", dept, shot)
}

// findUserByKey finds a configured user by one of their authorized keys.
func (a *Authenticator) findUserByKey(fingerprint string, key ssh.PublicKey) *access.UserInfo {
	for _, user := range a.config.ListUsers() {
		for _, pubKeyStr := range user.PublicKeys {
			parsedKey, _, _, _, err := ssh.ParseAuthorizedKey([]byte(pubKeyStr))
			if err != nil {
				// Entries may also be bare fingerprints
				if strings.TrimSpace(pubKeyStr) == fingerprint {
					return userInfo(user, fingerprint)
				}
				continue
			}
			if ssh.KeysEqual(parsedKey, key) {
				return userInfo(user, fingerprint)
			}
		}
	}
	return nil
}

func userInfo(user config.User, fingerprint string) *access.UserInfo {
	return &access.UserInfo{
		Name:        user.Name,
		IsAdmin:     user.Admin,
		PublicKeyFP: fingerprint,
	}
}

// GetUserFromContext retrieves user info from the SSH context.
func GetUserFromContext(ctx ssh.Context) *access.UserInfo {
	if user, ok := ctx.Value(ctxKeyUser).(*access.UserInfo); ok {
		return user
	}
	return nil
}

// FingerprintKey returns the SHA256 fingerprint of a public key.
func FingerprintKey(key ssh.PublicKey) string {
	hash := sha256.Sum256(key.Marshal())
	return fmt.Sprintf("SHA256:%s", base64.StdEncoding.EncodeToString(hash[:]))
}
