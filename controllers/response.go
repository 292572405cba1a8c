package controllers

import (
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/gestion-ventes-api/middleware"
	"github.com/kendall-kelly/gestion-ventes-api/services"
	"github.com/shopspring/decimal"
)

var kindStatus = map[services.Kind]int{
	services.KindValidation:   http.StatusBadRequest,
	services.KindUnauthorized: http.StatusUnauthorized,
	services.KindForbidden:    http.StatusForbidden,
	services.KindNotFound:     http.StatusNotFound,
	services.KindConflict:     http.StatusConflict,
	services.KindUnavailable:  http.StatusServiceUnavailable,
	services.KindInternal:     http.StatusInternalServerError,
}

// respondError writes the error envelope for a service failure. Internal
// causes are logged and never sent to the client.
func respondError(c *gin.Context, err error) {
	e := services.AsError(err)
	status := kindStatus[e.Kind]
	if status >= http.StatusInternalServerError {
		log.Printf("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    e.Code,
			"message": e.Message,
		},
	})
}

func respondValidation(c *gin.Context, message string, details error) {
	body := gin.H{
		"code":    "VALIDATION_ERROR",
		"message": message,
	}
	if details != nil {
		body["details"] = details.Error()
	}
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   body,
	})
}

func respondData(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

func respondMessage(c *gin.Context, message string) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": message,
	})
}

// currentUserID reads the id set by the auth middleware
func currentUserID(c *gin.Context) (uint, bool) {
	id, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "UNAUTHORIZED",
				"message": "Could not extract user information",
			},
		})
		return 0, false
	}
	return id, true
}

// pathID parses a positive numeric path parameter
func pathID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_ID",
				"message": "Identifiant invalide: " + c.Param(name),
			},
		})
		return 0, false
	}
	return uint(id), true
}

// query parsers return ok=false after writing a 400 for malformed input;
// absent parameters yield nil

func queryUint(c *gin.Context, name string) (*uint, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		respondValidation(c, "Paramètre invalide: "+name, err)
		return nil, false
	}
	u := uint(v)
	return &u, true
}

func queryInt(c *gin.Context, name string) (*int64, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		respondValidation(c, "Paramètre invalide: "+name, err)
		return nil, false
	}
	return &v, true
}

func queryFloat(c *gin.Context, name string) (*float64, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		respondValidation(c, "Paramètre invalide: "+name, err)
		return nil, false
	}
	return &v, true
}

func queryBool(c *gin.Context, name string) (*bool, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		respondValidation(c, "Paramètre invalide: "+name, err)
		return nil, false
	}
	return &v, true
}

func queryDecimal(c *gin.Context, name string) (*decimal.Decimal, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, true
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		respondValidation(c, "Paramètre invalide: "+name, err)
		return nil, false
	}
	return &v, true
}

// queryDate parses an ISO calendar date (2006-01-02)
func queryDate(c *gin.Context, name string) (*time.Time, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, true
	}
	v, err := time.Parse("2006-01-02", raw)
	if err != nil {
		respondValidation(c, "Date invalide pour "+name+" (format attendu: AAAA-MM-JJ)", err)
		return nil, false
	}
	return &v, true
}
