package model

// SessionState セッションの認証状態
type SessionState string

const (
	SessionAnonymous             SessionState = "anonymous"
	SessionUnverifiedOrSignedOut SessionState = "unverified_or_signed_out"
	SessionAuthenticatedVerified SessionState = "authenticated_verified"
)

// AuthUser IDプロバイダーが状態変化のたびに通知するユーザー情報
type AuthUser struct {
	UID           string `json:"uid"`
	DisplayName   string `json:"displayName"`
	Email         string `json:"email,omitempty"`
	IsAnonymous   bool   `json:"isAnonymous"`
	EmailVerified bool   `json:"emailVerified"`
}

// IsVerifiedMember 匿名でなくメール認証済みのユーザーかどうか
func (u *AuthUser) IsVerifiedMember() bool {
	return u != nil && !u.IsAnonymous && u.EmailVerified
}

// StateFor 通知されたユーザーから遷移先の状態を決定する
func StateFor(user *AuthUser) SessionState {
	switch {
	case user.IsVerifiedMember():
		return SessionAuthenticatedVerified
	case user != nil && user.IsAnonymous:
		return SessionAnonymous
	default:
		return SessionUnverifiedOrSignedOut
	}
}

// UserProfile ユーザーごとのプロフィールドキュメント
type UserProfile struct {
	Username string `json:"username" firestore:"username"`
	Email    string `json:"email" firestore:"email"`
	Points   int    `json:"points" firestore:"points"`
}

// SessionView クライアントに返すセッション状態のスナップショット
type SessionView struct {
	State                SessionState `json:"state"`
	UserID               string       `json:"userId,omitempty"`
	DisplayName          string       `json:"displayName,omitempty"`
	Points               int          `json:"points"`
	AwaitingVerification bool         `json:"awaitingVerification"`
	CanPersist           bool         `json:"canPersist"`
	Subtitle             string       `json:"subtitle"`
}
