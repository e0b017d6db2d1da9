package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"

	"github.com/ncecere/readaloud/internal/config"
)

const redacted = "<redacted>"

func main() {
	configFile := flag.String("config", "", "path to a readaloud YAML config file")
	flag.Parse()

	cfg, err := config.Load(config.Options{ConfigFile: *configFile})
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(redact(*cfg)); err != nil {
		log.Fatalf("encode config: %v", err)
	}
}

func redact(cfg config.Config) config.Config {
	for _, secret := range []*string{
		&cfg.Providers.OpenAIKey,
		&cfg.Providers.AzureOpenAIKey,
		&cfg.Providers.AzureVisionKey,
		&cfg.Providers.AWSAccessKeyID,
		&cfg.Providers.AWSSecretAccessKey,
		&cfg.Providers.AWSSessionToken,
		&cfg.Audio.EncryptionKey,
		&cfg.Redis.URL,
	} {
		if *secret != "" {
			*secret = redacted
		}
	}
	return cfg
}
