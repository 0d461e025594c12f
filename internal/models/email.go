package models

// EmailMessage is a rendered report ready for an email transport
type EmailMessage struct {
	From    string
	To      []string
	Subject string
	HTML    string
	Text    string
}
