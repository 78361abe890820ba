package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/geocoder89/younginnovators/internal/domain/user"
	"github.com/gin-gonic/gin"
)

// userETag versions a single record by id. Points and verification can change
// in the store behind the API, so a short content digest is part of the tag.
func userETag(u user.User) string {
	return fmt.Sprintf(`W/"user-%s-%s"`, u.ID, digest(u))
}

// listETag versions a listing by its size and newest join time, so a new
// mentor always produces a new tag.
func listETag(items []user.User) string {
	var newest time.Time
	for _, u := range items {
		if u.JoinedAt.After(newest) {
			newest = u.JoinedAt
		}
	}
	return fmt.Sprintf(`W/"users-%d-%d-%s"`, len(items), newest.UnixMilli(), digest(items))
}

func digest(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "0"
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:8])
}

// respondWithETag answers 304 when the client already holds etag.
func respondWithETag(ctx *gin.Context, etag string, payload interface{}) {
	ctx.Header("ETag", etag)

	if etagMatches(ctx.GetHeader("If-None-Match"), etag) {
		ctx.Status(http.StatusNotModified)
		return
	}

	ctx.JSON(http.StatusOK, payload)
}

// etagMatches uses weak comparison, so W/ prefixes are ignored on both sides.
func etagMatches(ifNoneMatch, etag string) bool {
	ifNoneMatch = strings.TrimSpace(ifNoneMatch)
	if ifNoneMatch == "" {
		return false
	}
	if ifNoneMatch == "*" {
		return true
	}

	want := strings.TrimPrefix(etag, "W/")
	for _, candidate := range strings.Split(ifNoneMatch, ",") {
		if strings.TrimPrefix(strings.TrimSpace(candidate), "W/") == want {
			return true
		}
	}
	return false
}
