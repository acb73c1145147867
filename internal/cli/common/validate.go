package common

import (
	"fmt"
	"net"

	"github.com/spf13/viper"
)

func ValidateAddr(addr string) error {
	if addr == "" {
		return fmt.Errorf("empty address")
	}
	if _, err := net.ResolveTCPAddr("tcp", addr); err != nil {
		return err
	}
	return nil
}

// ValidateServerConfig checks the server section before startup. Strict mode
// refuses queue collect without a configured queue backend.
func ValidateServerConfig(v *viper.Viper, strict bool) error {
	if sub := v.Sub("server"); sub != nil {
		v = sub
	}
	if err := ValidateAddr(v.GetString("http_addr")); err != nil {
		return fmt.Errorf("http_addr: %w", err)
	}
	switch mode := v.GetString("collect.mode"); mode {
	case "", "sync":
	case "queue":
		switch qt := v.GetString("queue.type"); qt {
		case "redis", "kafka":
		case "", "noop":
			if strict {
				return fmt.Errorf("collect.mode=queue requires queue.type redis or kafka")
			}
		default:
			return fmt.Errorf("queue.type: unsupported %q", qt)
		}
	default:
		return fmt.Errorf("collect.mode: unsupported %q", mode)
	}
	return nil
}

// ValidateWorkerConfig checks the worker section. The worker always needs a
// Redis stream to drain.
func ValidateWorkerConfig(v *viper.Viper, strict bool) error {
	if sub := v.Sub("worker"); sub != nil {
		v = sub
	}
	if v.GetString("redis_url") == "" {
		if strict {
			return fmt.Errorf("redis_url missing")
		}
	}
	return nil
}
