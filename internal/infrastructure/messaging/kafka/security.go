package kafka

import (
	"crypto/tls"
	"crypto/x509"
	"os"

	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"

	"github.com/turtacn/ChargeMatch/pkg/errors"
)

// SecurityConfig configures broker authentication and transport encryption.
// The zero value connects in plaintext without SASL.
type SecurityConfig struct {
	SASLMechanism string // "", "PLAIN", "SCRAM-SHA-256" or "SCRAM-SHA-512"
	SASLUsername  string
	SASLPassword  string
	TLSEnabled    bool
	TLSCAFile     string
}

func (s SecurityConfig) validate() error {
	switch s.SASLMechanism {
	case "":
		return nil
	case "PLAIN", "SCRAM-SHA-256", "SCRAM-SHA-512":
	default:
		return errors.New(errors.ErrCodeValidation, "unsupported SASL mechanism").
			WithDetail("mechanism=" + s.SASLMechanism)
	}
	if s.SASLUsername == "" || s.SASLPassword == "" {
		return errors.New(errors.ErrCodeValidation, "SASL credentials required")
	}
	return nil
}

func (s SecurityConfig) mechanism() (sasl.Mechanism, error) {
	var (
		mech sasl.Mechanism
		err  error
	)
	switch s.SASLMechanism {
	case "":
		return nil, nil
	case "PLAIN":
		mech = plain.Mechanism{Username: s.SASLUsername, Password: s.SASLPassword}
	case "SCRAM-SHA-256":
		mech, err = scram.Mechanism(scram.SHA256, s.SASLUsername, s.SASLPassword)
	case "SCRAM-SHA-512":
		mech, err = scram.Mechanism(scram.SHA512, s.SASLUsername, s.SASLPassword)
	default:
		return nil, s.validate()
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to create SASL mechanism")
	}
	return mech, nil
}

// tlsConfig returns nil when TLS is disabled.  Without a CA file the system
// roots are used.
func (s SecurityConfig) tlsConfig() (*tls.Config, error) {
	if !s.TLSEnabled {
		return nil, nil
	}
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if s.TLSCAFile == "" {
		return cfg, nil
	}
	pem, err := os.ReadFile(s.TLSCAFile)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeValidation, "failed to read TLS CA file").
			WithDetail("path=" + s.TLSCAFile)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New(errors.ErrCodeValidation, "TLS CA file holds no certificates").
			WithDetail("path=" + s.TLSCAFile)
	}
	cfg.RootCAs = pool
	return cfg, nil
}

//Personal.AI order the ending
