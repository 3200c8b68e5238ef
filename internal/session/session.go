// Package session issues player identities from cookies.
package session

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/park285/cheese-arena/internal/presence"
)

const (
	CookieUID  = "uid"
	CookieNick = "nick"

	maxNickLen   = 32
	CookieMaxAge = 365 * 24 * 60 * 60
)

var (
	adjectives = []string{
		"Agile", "Bold", "Brave", "Calm", "Clever", "Cosmic", "Crisp", "Daring", "Eager", "Fierce",
		"Gentle", "Golden", "Happy", "Humble", "Jolly", "Keen", "Lucky", "Mellow", "Nimble", "Noble",
		"Quiet", "Rapid", "Rusty", "Shiny", "Silent", "Sly", "Steady", "Swift", "Tidy", "Witty",
	}
	animals = []string{
		"Badger", "Bison", "Condor", "Coyote", "Falcon", "Ferret", "Gecko", "Heron", "Ibex", "Jackal",
		"Koala", "Lemur", "Lynx", "Marten", "Moose", "Narwhal", "Ocelot", "Otter", "Panda", "Puffin",
		"Raven", "Salmon", "Stoat", "Tapir", "Toucan", "Walrus", "Wombat", "Yak", "Zebra", "Kestrel",
	}
)

// Issue returns the identity carried by r's cookies, minting a fresh id or name
// when missing. Newly minted values are written to h as Set-Cookie headers.
func Issue(r *http.Request, h http.Header) presence.Identity {
	var uid, nick string
	if c, err := r.Cookie(CookieUID); err == nil {
		uid = c.Value
	}
	if c, err := r.Cookie(CookieNick); err == nil {
		nick = c.Value
	}
	id, mintedID, mintedName := Resolve(uid, nick)
	if mintedID {
		setCookie(h, CookieUID, id.ID)
	}
	if mintedName {
		setCookie(h, CookieNick, id.Name)
	}
	return id
}

// Resolve validates raw cookie values and mints replacements for the ones that
// are missing or malformed.
func Resolve(uid, nick string) (id presence.Identity, mintedID, mintedName bool) {
	if u, err := uuid.Parse(strings.TrimSpace(uid)); err == nil {
		id.ID = u.String()
	} else {
		id.ID = uuid.NewString()
		mintedID = true
	}
	if id.Name = CleanNick(nick); id.Name == "" {
		id.Name = GenerateName()
		mintedName = true
	}
	return id, mintedID, mintedName
}

func setCookie(h http.Header, name, value string) {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   CookieMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	h.Add("Set-Cookie", c.String())
}

// CleanNick trims, drops control characters and caps the length. It returns ""
// when nothing printable remains.
func CleanNick(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		if r < 0x20 || r == 0x7f || r == utf8.RuneError {
			continue
		}
		b.WriteRune(r)
		if utf8.RuneCountInString(b.String()) >= maxNickLen {
			break
		}
	}
	return strings.TrimSpace(b.String())
}

// GenerateName returns names like "SwiftOtter#0042".
func GenerateName() string {
	return fmt.Sprintf("%s%s#%04d", adjectives[randInt(len(adjectives))], animals[randInt(len(animals))], randInt(1000))
}

func randInt(n int) int {
	k, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(k.Int64())
}
