package kafka

import (
	"context"
	"crypto/tls"
	"fmt"
	"strconv"

	"github.com/IBM/sarama"
	"github.com/aws/aws-msk-iam-sasl-signer-go/signer"
)

// SecurityConfig holds the connection security settings shared by the
// consumer group and the DLQ producer.
type SecurityConfig struct {
	Protocol           string
	SASLMechanism      string
	SASLUsername       string
	SASLPassword       string
	AWSRegion          string
	InsecureSkipVerify bool
}

// MSKAccessTokenProvider implements sarama.AccessTokenProvider for AWS MSK IAM authentication.
type MSKAccessTokenProvider struct {
	region string
}

// Token generates an AWS MSK IAM authentication token.
func (m *MSKAccessTokenProvider) Token() (*sarama.AccessToken, error) {
	token, expiryMs, err := signer.GenerateAuthToken(context.Background(), m.region)
	if err != nil {
		return nil, fmt.Errorf("failed to generate MSK IAM token: %w", err)
	}

	return &sarama.AccessToken{
		Token: token,
		Extensions: map[string]string{
			"expiry": strconv.FormatInt(expiryMs, 10),
		},
	}, nil
}

// offsetInitial maps auto_offset_reset to Sarama's initial offset.
func offsetInitial(autoOffsetReset string) int64 {
	if autoOffsetReset == "earliest" {
		return sarama.OffsetOldest
	}
	return sarama.OffsetNewest
}

func (s SecurityConfig) tlsConfig() *tls.Config {
	return &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: s.InsecureSkipVerify,
	}
}

func configureSecurity(config *sarama.Config, sec SecurityConfig) error {
	switch sec.Protocol {
	case "", "PLAINTEXT":
		return nil

	case "SSL":
		config.Net.TLS.Enable = true
		config.Net.TLS.Config = sec.tlsConfig()
		return nil

	case "SASL_PLAINTEXT", "SASL_SSL":
		config.Net.SASL.Enable = true
		if err := configureSASL(config, sec); err != nil {
			return err
		}
		if sec.Protocol == "SASL_SSL" {
			config.Net.TLS.Enable = true
			config.Net.TLS.Config = sec.tlsConfig()
		}
		return nil

	default:
		return fmt.Errorf("unsupported security protocol: %s", sec.Protocol)
	}
}

func configureSASL(config *sarama.Config, sec SecurityConfig) error {
	switch sec.SASLMechanism {
	case "PLAIN":
		config.Net.SASL.Mechanism = sarama.SASLTypePlaintext
	case "SCRAM-SHA-256":
		config.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA256
		config.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
			return &XDGSCRAMClient{HashGeneratorFcn: SHA256()}
		}
	case "SCRAM-SHA-512":
		config.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA512
		config.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
			return &XDGSCRAMClient{HashGeneratorFcn: SHA512()}
		}
	case "AWS_MSK_IAM":
		if sec.AWSRegion == "" {
			return fmt.Errorf("AWS_MSK_IAM requires an AWS region")
		}
		config.Net.SASL.Mechanism = sarama.SASLTypeOAuth
		config.Net.SASL.TokenProvider = &MSKAccessTokenProvider{region: sec.AWSRegion}
		return nil
	default:
		return fmt.Errorf("unsupported SASL mechanism: %s", sec.SASLMechanism)
	}

	config.Net.SASL.User = sec.SASLUsername
	config.Net.SASL.Password = sec.SASLPassword
	return nil
}
