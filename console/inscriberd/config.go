// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"inscriber/bitcoin/walletrpc"
	"inscriber/server"
)

// Config is the daemon configuration.
type Config struct {
	LogLevel string           `yaml:"log_level"`
	RPC      walletrpc.Config `yaml:"rpc"`
	Server   server.Config    `yaml:"server"`
}

// ReadConfig loads the yaml configuration from path.
func ReadConfig(path string) (Config, error) {
	var config Config

	data, err := os.ReadFile(path)
	if err != nil {
		return config, err
	}

	if err = yaml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("malformed configuration: %w", err)
	}

	return config, nil
}
