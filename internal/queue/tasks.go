package queue

const (
	TypeOTPEmail     = "email:otp"
	TypeSessionPurge = "session:purge"
)

type OTPEmailPayload struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}
