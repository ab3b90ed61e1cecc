package config

import (
	"fmt"
	"os"
)

func GetDSN() string {
	DATABASE_HOST := os.Getenv("DATABASE_HOST")
	DATABASE_PORT := os.Getenv("DATABASE_PORT")
	DATABASE_SSLMODE := os.Getenv("DATABASE_SSLMODE")
	DATABASE_TIMEZONE := os.Getenv("DATABASE_TIMEZONE")
	DATABASE_USER := os.Getenv("DATABASE_USER")
	DATABASE_PASSWORD := os.Getenv("DATABASE_PASSWORD")
	DATABASE_NAME := os.Getenv("DATABASE_NAME")
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s", DATABASE_HOST, DATABASE_USER, DATABASE_PASSWORD, DATABASE_NAME, DATABASE_PORT, DATABASE_SSLMODE, DATABASE_TIMEZONE)
	return dsn
}

// MpesaConfig holds the Daraja API credentials and hosts. Sandbox values work
// against https://sandbox.safaricom.co.ke.
type MpesaConfig struct {
	BaseURL          string
	ConsumerKey      string
	ConsumerSecret   string
	ShortCode        string
	Passkey          string
	CallbackURL      string
	AccountReference string
	TransactionDesc  string
}

func GetMpesaConfig() MpesaConfig {
	return MpesaConfig{
		BaseURL:          os.Getenv("MPESA_BASE_URL"),
		ConsumerKey:      os.Getenv("MPESA_CONSUMER_KEY"),
		ConsumerSecret:   os.Getenv("MPESA_CONSUMER_SECRET"),
		ShortCode:        os.Getenv("MPESA_BUSINESS_SHORT_CODE"),
		Passkey:          os.Getenv("MPESA_PASSKEY"),
		CallbackURL:      os.Getenv("MPESA_CALLBACK_URL"),
		AccountReference: os.Getenv("MPESA_ACCOUNT_REFERENCE"),
		TransactionDesc:  os.Getenv("MPESA_TRANSACTION_DESC"),
	}
}

const TIME_PARSE_FORMAT = "2006-01-02 15:04:05 -07:00"
