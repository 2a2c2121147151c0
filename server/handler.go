// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (service *Service) getHealth(c *gin.Context) {
	c.JSON(http.StatusOK, &HealthResp{
		BaseResp: BaseResp{Code: 0, Msg: "ok"},
		Network:  service.networkParams.Name,
	})
}

// inscribe builds the commit and reveal pair for a typed batch request.
// Malformed requests are rejected outright, construction failures come back
// in the response envelope.
func (service *Service) inscribe(c *gin.Context) {
	resp := &InscribeResp{BaseResp: BaseResp{Code: 0, Msg: "ok"}}

	var request InscribeRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		resp.Code = -1
		resp.Msg = err.Error()
		c.JSON(http.StatusBadRequest, resp)
		return
	}

	output, err := service.model.Inscribe(request)
	if err != nil {
		service.log.WithError(err).Warn("inscribe request failed")
		resp.Code = -1
		resp.Msg = err.Error()
		c.JSON(http.StatusOK, resp)
		return
	}

	resp.Data = output
	c.JSON(http.StatusOK, resp)
}
