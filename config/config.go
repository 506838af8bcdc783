package config

import (
	"os"

	"github.com/anyproto/any-sync/app"
	"github.com/anyproto/any-sync/metric"
	"gopkg.in/yaml.v3"

	"github.com/anyproto/anytype-push-dispatch/db"
	"github.com/anyproto/anytype-push-dispatch/dispatch"
	"github.com/anyproto/anytype-push-dispatch/dispatch/provider/apns"
	"github.com/anyproto/anytype-push-dispatch/dispatch/provider/fcm"
	"github.com/anyproto/anytype-push-dispatch/dispatch/provider/legacy"
	"github.com/anyproto/anytype-push-dispatch/redisprovider"
)

const CName = "config"

func NewFromFile(path string) (c *Config, err error) {
	c = &Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err = yaml.Unmarshal(data, c); err != nil {
		return nil, err
	}
	return
}

type Config struct {
	InstanceId       string               `yaml:"instanceId"`
	TokenCacheTtlSec int                  `yaml:"tokenCacheTtlSec"`
	Mongo            db.Mongo             `yaml:"mongo"`
	Redis            redisprovider.Config `yaml:"redis"`
	Metric           metric.Config        `yaml:"metric"`
	Dispatch         dispatch.Config      `yaml:"dispatch"`
	FCM              fcm.Config           `yaml:"fcm"`
	APNS             apns.Config          `yaml:"apns"`
	Legacy           legacy.Config        `yaml:"legacy"`
}

func (c *Config) Init(a *app.App) (err error) {
	return nil
}

func (c *Config) Name() (name string) {
	return CName
}

func (c *Config) GetInstanceId() string {
	return c.InstanceId
}

func (c *Config) GetTokenCacheTtlSec() int {
	return c.TokenCacheTtlSec
}

func (c *Config) GetMongo() db.Mongo {
	return c.Mongo
}

func (c *Config) GetRedis() redisprovider.Config {
	return c.Redis
}

func (c *Config) GetMetric() metric.Config {
	return c.Metric
}

func (c *Config) GetDispatch() dispatch.Config {
	return c.Dispatch
}

func (c *Config) GetFCM() fcm.Config {
	return c.FCM
}

func (c *Config) GetAPNS() apns.Config {
	return c.APNS
}

func (c *Config) GetLegacy() legacy.Config {
	return c.Legacy
}
