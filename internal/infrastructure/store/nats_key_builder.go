// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain"
)

// validKeyRe matches the characters NATS accepts in a KV key.
//
// NATS limitations: https://docs.nats.io/nats-concepts/jetstream/key-value-store#notes
var validKeyRe = regexp.MustCompile(`^[-/_=\.a-zA-Z0-9]+$`)

// DocumentKey returns the KV key a document id is stored under. Document ids
// are used verbatim so that watch updates map back to ids without decoding.
func DocumentKey(documentID string) (string, error) {
	if documentID == "" {
		return "", domain.NewValidationError("document id is required", domain.ErrValidationFailed)
	}
	if !validKeyRe.MatchString(documentID) ||
		strings.HasPrefix(documentID, ".") ||
		strings.HasSuffix(documentID, ".") {
		return "", domain.NewValidationError(
			fmt.Sprintf("document id %q contains characters not allowed in a store key", documentID),
			domain.ErrValidationFailed)
	}
	return documentID, nil
}
