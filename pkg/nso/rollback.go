package nso

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/netops-lab/loopctl/pkg/util"
)

// RollbackFile describes one entry in NSO's rollback file list.
type RollbackFile struct {
	ID          int    `json:"id"`
	FixedNumber int    `json:"fixed-number"`
	Creator     string `json:"creator"`
	Date        string `json:"date"`
	Via         string `json:"via"`
	Label       string `json:"label,omitempty"`
	Comment     string `json:"comment,omitempty"`
}

// RollbackFiles lists the available rollback files, most recent first
// (NSO's relative id 0 is the newest).
func (c *Client) RollbackFiles(ctx context.Context) ([]RollbackFile, error) {
	url := c.baseURL + "/data/tailf-rollback:rollback-files"

	var out struct {
		Files struct {
			File []RollbackFile `json:"file"`
		} `json:"tailf-rollback:rollback-files"`
	}
	if err := c.getJSON(ctx, url, &out); err != nil {
		return nil, fmt.Errorf("listing rollback files: %w", err)
	}
	return out.Files.File, nil
}

// Rollback applies a rollback file, reverting a previously committed
// transaction. With fixedNumber the id is the commit's stable
// fixed-number (what the write operations return); otherwise it is
// NSO's relative id where 0 is the most recent commit.
func (c *Client) Rollback(ctx context.Context, id int, fixedNumber bool) error {
	url := c.baseURL + "/data/tailf-rollback:rollback-files/apply-rollback-file"

	key := "id"
	if fixedNumber {
		key = "fixed-number"
	}
	payload := fmt.Sprintf(`{"input": {"%s": %d}}`, key, id)

	util.Infof("applying rollback file (%s=%d)", key, id)
	resp, err := c.do(ctx, http.MethodPost, url, "", strings.NewReader(payload))
	if err != nil {
		return fmt.Errorf("rollback (%s=%d): %w", key, id, err)
	}
	resp.Body.Close()
	return nil
}

// parseRollbackID extracts the rollback fixed-number from a commit
// response. A commit without one is not an error — NSO omits it when
// the transaction was a no-op.
func parseRollbackID(r io.Reader, log *logrus.Entry) (int, error) {
	var out struct {
		Result struct {
			Rollback struct {
				ID int `json:"id"`
			} `json:"rollback"`
		} `json:"tailf-restconf:result"`
	}
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		log.Debugf("no rollback-id in commit response: %v", err)
		return 0, nil
	}
	if out.Result.Rollback.ID != 0 {
		log.Debugf("commit rollback fixed-number %d", out.Result.Rollback.ID)
	}
	return out.Result.Rollback.ID, nil
}
