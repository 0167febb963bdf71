package util

import (
	"github.com/coah80/telegrab/internal/config"
)

func HasProxy() bool {
	return config.ProxyURL != ""
}

func GetProxyArgs() []string {
	if !HasProxy() {
		return nil
	}
	return []string{"--proxy", config.ProxyURL}
}
