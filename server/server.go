// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

// Package server exposes the inscription construction engine over HTTP.
// The service is walletless, it neither holds keys nor talks to a node.
// Callers supply the outputs to spend and receive the funding PSBT, the
// signed reveal hex and the recovery descriptor to use with their own
// signing setup.
package server

import (
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"inscriber/internal/logger"
)

// Config holds the HTTP server settings.
type Config struct {
	Address string `yaml:"address"`
}

// Service is the inscriber HTTP API.
type Service struct {
	config        Config
	networkParams *chaincfg.Params
	model         *Model
	log           *logrus.Entry
}

// NewService is a constructor for Service.
func NewService(config Config, networkParams *chaincfg.Params) *Service {
	return &Service{
		config:        config,
		networkParams: networkParams,
		model:         NewModel(networkParams),
		log:           logger.Entry("server"),
	}
}

// InitRouter registers the API routes on the provided engine.
func (service *Service) InitRouter(engine *gin.Engine) {
	engine.GET("/health", service.getHealth)
	engine.POST("/inscribe", service.inscribe)
}

// Run starts the HTTP server and blocks until it fails.
func (service *Service) Run() error {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery())
	service.InitRouter(engine)

	service.log.WithField("address", service.config.Address).Info("listening")

	return engine.Run(service.config.Address)
}
