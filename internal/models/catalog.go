package models

// Platform is an email platform catalog entry (e.g. a hosted suite or an on-prem server).
type Platform struct {
	ID                 string `yaml:"id" json:"id"`
	Name               string `yaml:"name" json:"name"`
	AllowsReassignment bool   `yaml:"allowsReassignment" json:"allowsReassignment"`
}

// AccountType is an account type catalog entry (mailbox, shared, distribution list...).
type AccountType struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
}

// Protocol is an access protocol catalog entry (IMAP, POP3, Exchange...).
type Protocol struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
}
