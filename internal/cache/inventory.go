package cache

import (
	"fmt"
	"time"
)

const (
	BlocklistKey     = "modhub:blocklist"
	SettingKeyPrefix = "modhub:setting:%s"
)

const (
	DefaultBlocklistTTL = time.Minute
	SettingTTL          = 30 * time.Second
)

func SettingKey(name string) string {
	return fmt.Sprintf(SettingKeyPrefix, name)
}
