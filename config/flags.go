package config

import (
	"time"

	"github.com/spf13/pflag"
)

// flagValues keeps the parsed flag set so only explicitly passed flags
// override lower layers.
type flagValues struct {
	fs         *pflag.FlagSet
	configPath string
	addr       string
	secret     string
	ttl        time.Duration
	store      string
	mongoURI   string
}

// parseFlags reads the supported flags:
//
//	--config string          YAML config file
//	--addr string            HTTP listen address
//	--auth-secret string     HMAC secret for session tokens
//	--token-ttl duration     session token validity
//	--store string           store driver (mongo|memory)
//	--mongo-uri string       MongoDB connection string
func parseFlags(args []string) (*flagValues, error) {
	fv := &flagValues{fs: pflag.NewFlagSet("trashure", pflag.ContinueOnError)}

	fv.fs.StringVar(&fv.configPath, "config", "", "path to a YAML config file")
	fv.fs.StringVar(&fv.addr, "addr", "", "HTTP listen address")
	fv.fs.StringVar(&fv.secret, "auth-secret", "", "HMAC secret for session tokens")
	fv.fs.DurationVar(&fv.ttl, "token-ttl", 0, "session token validity")
	fv.fs.StringVar(&fv.store, "store", "", "store driver (mongo|memory)")
	fv.fs.StringVar(&fv.mongoURI, "mongo-uri", "", "MongoDB connection string")

	if err := fv.fs.Parse(args); err != nil {
		return nil, err
	}
	return fv, nil
}

func (fv *flagValues) apply(cfg *Config) {
	if fv.fs.Changed("addr") {
		cfg.HTTPAddr = fv.addr
	}
	if fv.fs.Changed("auth-secret") {
		cfg.AuthSecret = fv.secret
	}
	if fv.fs.Changed("token-ttl") {
		cfg.TokenTTL = fv.ttl
	}
	if fv.fs.Changed("store") {
		cfg.StoreDriver = fv.store
	}
	if fv.fs.Changed("mongo-uri") {
		cfg.MongoURI = fv.mongoURI
	}
}
