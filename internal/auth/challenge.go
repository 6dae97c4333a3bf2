package auth

import (
	"encoding/base64"
	"errors"
	"strings"

	"github.com/Azure/go-ntlmssp"
)

var ErrAuthRejected = errors.New("auth: credentials rejected")

// Challenge is one scheme offered in a WWW-Authenticate or
// Proxy-Authenticate header.
type Challenge struct {
	Scheme string // lower case
	Token  string // NTLM challenge message, base64
	Params map[string]string
}

// ParseChallenges parses all challenges found in the given header values.
func ParseChallenges(values []string) []Challenge {
	var out []Challenge
	for _, v := range values {
		for _, piece := range splitQuoted(v) {
			piece = strings.TrimSpace(piece)
			if piece == "" {
				continue
			}
			word, rest, _ := strings.Cut(piece, " ")
			if strings.Contains(word, "=") {
				// auth-param of the previous challenge
				if len(out) > 0 {
					k, v, _ := strings.Cut(piece, "=")
					out[len(out)-1].Params[strings.ToLower(strings.TrimSpace(k))] = strings.Trim(strings.TrimSpace(v), `"`)
				}
				continue
			}
			c := Challenge{Scheme: strings.ToLower(word), Params: map[string]string{}}
			rest = strings.TrimSpace(rest)
			// base64 tokens only carry '=' as trailing padding
			if strings.Contains(strings.TrimRight(rest, "="), "=") {
				k, v, _ := strings.Cut(rest, "=")
				c.Params[strings.ToLower(strings.TrimSpace(k))] = strings.Trim(strings.TrimSpace(v), `"`)
			} else if rest != "" {
				c.Token = rest
			}
			out = append(out, c)
		}
	}
	return out
}

// splitQuoted splits on commas outside double quotes.
func splitQuoted(s string) []string {
	var parts []string
	quoted, start := false, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			quoted = !quoted
		case ',':
			if !quoted {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

// Handshake answers the challenges of one target (the origin server or the
// proxy) for the duration of one call. NTLM takes two rounds on the same
// connection; Basic takes one.
type Handshake struct {
	creds Credentials
	round int
}

func NewHandshake(c Credentials) *Handshake {
	return &Handshake{creds: c}
}

// Connection reports whether the handshake is bound to the connection it
// started on, which is the case for NTLM once the negotiate was sent.
func (h *Handshake) Connection() bool {
	return h.creds.NTLM() && h.round == 1
}

// Respond returns the Authorization (or Proxy-Authorization) value for the
// next attempt. ok is false when none of the challenges can be answered.
func (h *Handshake) Respond(challenges []Challenge) (value string, ok bool, err error) {
	var basic, ntlm *Challenge
	for i := range challenges {
		switch challenges[i].Scheme {
		case "basic":
			basic = &challenges[i]
		case "ntlm":
			ntlm = &challenges[i]
		}
	}
	switch {
	case ntlm != nil && h.creds.NTLM():
		switch h.round {
		case 0:
			msg, err := ntlmssp.NewNegotiateMessage(h.creds.Domain, h.creds.Workstation)
			if err != nil {
				return "", false, err
			}
			h.round = 1
			return "NTLM " + base64.StdEncoding.EncodeToString(msg), true, nil
		case 1:
			if ntlm.Token == "" {
				return "", false, ErrAuthRejected
			}
			challenge, err := base64.StdEncoding.DecodeString(ntlm.Token)
			if err != nil {
				return "", false, err
			}
			msg, err := ntlmssp.ProcessChallenge(challenge, h.creds.Username, h.creds.Password, true)
			if err != nil {
				return "", false, err
			}
			h.round = 2
			return "NTLM " + base64.StdEncoding.EncodeToString(msg), true, nil
		}
		return "", false, ErrAuthRejected
	case basic != nil:
		if h.round != 0 {
			return "", false, ErrAuthRejected
		}
		h.round = 2
		return BasicAuth(h.creds.Username, h.creds.Password), true, nil
	}
	return "", false, nil
}

func BasicAuth(user, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+password))
}
