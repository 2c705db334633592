package http

import (
	"net/http"
	"strings"

	"lendeefi/internal/config"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

const callerHeader = "X-Caller-Address"

func (s *Server) authMode() string {
	if s.cfg.AuthMode == "" {
		return config.AuthModeNone
	}
	return s.cfg.AuthMode
}

// requireCaller resolves the acting address. The header is only honoured
// behind an authenticating gateway (AUTH_MODE=trusted-header).
func (s *Server) requireCaller(c *gin.Context) (common.Address, bool) {
	if s.authMode() != config.AuthModeTrustedHeader {
		writeErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "caller identity is unavailable in auth mode "+s.authMode())
		return common.Address{}, false
	}
	raw := strings.TrimSpace(c.GetHeader(callerHeader))
	if raw == "" {
		writeErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing "+callerHeader)
		return common.Address{}, false
	}
	if !common.IsHexAddress(raw) {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_CALLER", "caller must be a hex address")
		return common.Address{}, false
	}
	caller := common.HexToAddress(raw)
	if caller == (common.Address{}) {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_CALLER", "caller must not be the zero address")
		return common.Address{}, false
	}
	return caller, true
}
