package refresh

import "blog-session/internal/pkg/session"

type action int

const (
	actionFail action = iota
	actionUseToken
	actionDropToken
	actionRefresh
)

func (a action) String() string {
	switch a {
	case actionUseToken:
		return "use_token"
	case actionDropToken:
		return "drop_token"
	case actionRefresh:
		return "refresh"
	default:
		return "fail"
	}
}

// decide is the resolver's transition table. It is pure so every row can be
// checked without a store or transport.
func decide(status session.Status, token string, user *session.UserRecord, budget int) action {
	if budget <= 0 {
		return actionFail
	}
	switch status {
	case session.StatusAuthenticated:
		if token != "" {
			return actionUseToken
		}
		return actionDropToken
	case session.StatusExpired:
		if user == nil || user.RefreshToken == "" {
			return actionFail
		}
		return actionRefresh
	default:
		return actionFail
	}
}
