package postmark

// Config holds Postmark credentials and sender identity, mapped from
// environment variables. Tokens are optional so development setups can
// run with the dev sender instead.
type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"SENDER_EMAIL"`
	NotifyEmail          string `env:"LEAD_NOTIFY_EMAIL"`
}
