package server

import (
	"encoding/json"
	"strings"

	"github.com/gin-gonic/gin"
	invoicedomain "github.com/smallbiznis/invoicedesk/internal/invoice/domain"
)

const (
	formStateField = "_state"
	maxFormMemory  = 1 << 20
)

// formValues flattens an urlencoded or multipart body into the first value
// of each field.
func formValues(c *gin.Context) (map[string]string, error) {
	if strings.HasPrefix(c.ContentType(), gin.MIMEMultipartPOSTForm) {
		if err := c.Request.ParseMultipartForm(maxFormMemory); err != nil {
			return nil, err
		}
	} else if err := c.Request.ParseForm(); err != nil {
		return nil, err
	}

	values := make(map[string]string, len(c.Request.PostForm))
	for key, vals := range c.Request.PostForm {
		if key == formStateField || len(vals) == 0 {
			continue
		}
		values[key] = vals[0]
	}
	return values, nil
}

// previousState reads the state a tolerant form posts back. A missing or
// malformed value is an empty state.
func previousState(c *gin.Context) invoicedomain.FormState {
	raw := strings.TrimSpace(c.Request.PostFormValue(formStateField))
	if raw == "" {
		return invoicedomain.FormState{}
	}
	var state invoicedomain.FormState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return invoicedomain.FormState{}
	}
	return state
}
