package api

import (
	"net/http"

	"github.com/chainwatch/ingestor/internal/common"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/schema"
	"github.com/rs/zerolog/log"
)

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeError(c *gin.Context, message string, code int) {
	c.AbortWithStatusJSON(code, Error{Code: code, Message: message})
}

var (
	BadRequestErrorHandler = func(c *gin.Context, err error) {
		writeError(c, err.Error(), http.StatusBadRequest)
	}
	InternalErrorHandler = func(c *gin.Context) {
		writeError(c, "An unexpected error occurred.", http.StatusInternalServerError)
	}
	UnauthorizedErrorHandler = func(c *gin.Context, err error) {
		writeError(c, err.Error(), http.StatusUnauthorized)
	}
	NotFoundErrorHandler = func(c *gin.Context, err error) {
		writeError(c, err.Error(), http.StatusNotFound)
	}
	UnavailableErrorHandler = func(c *gin.Context, err error) {
		writeError(c, err.Error(), http.StatusServiceUnavailable)
	}
)

// PartitionParams selects one partition. All fields empty selects every
// partition.
type PartitionParams struct {
	common.PartitionConfig
	Limit int `schema:"limit"`
}

func (p PartitionParams) All() bool {
	return p.Network == "" && p.Subnet == "" && p.VMType == ""
}

var decoder = newDecoder()

func newDecoder() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}

// ParsePartitionParams decodes the partition query parameters and validates
// them unless none were given.
func ParsePartitionParams(r *http.Request) (PartitionParams, error) {
	var params PartitionParams
	if err := decoder.Decode(&params, r.URL.Query()); err != nil {
		log.Debug().Err(err).Msg("Error parsing query params")
		return PartitionParams{}, err
	}
	if params.All() {
		return params, nil
	}
	if err := params.Validate(); err != nil {
		return PartitionParams{}, err
	}
	return params, nil
}
