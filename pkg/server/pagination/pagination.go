package pagination

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"

	"github.com/tbd54566975/did-service/pkg/server/framework"
	"github.com/tbd54566975/did-service/pkg/service/did"
)

// PageToken is what a client receives as nextPageToken, base64url encoded. It binds the service token to
// the query that produced it.
type PageToken struct {
	EncodedQuery  string
	NextPageToken string
}

const (
	PageSizeParam  = "pageSize"
	PageTokenParam = "pageToken"
)

// ParsePaginationParams reads PageSizeParam and PageTokenParam from the query into pageRequest. A page token
// is only valid for the query it was issued for. Failures are responded to with a 400, and the return value
// reports whether that happened.
func ParsePaginationParams(c *gin.Context, pageRequest *PageRequest) bool {
	if pageSizeStr := framework.GetQueryValue(c, PageSizeParam); pageSizeStr != nil {
		pageSize, err := strconv.Atoi(*pageSizeStr)
		if err != nil {
			errMsg := fmt.Sprintf("list request encountered a problem with the %q query param", PageSizeParam)
			framework.LoggingRespondErrMsg(c, errMsg, http.StatusBadRequest)
			return true
		}
		if pageSize <= 0 {
			errMsg := fmt.Sprintf("'%s' must be greater than 0", PageSizeParam)
			framework.LoggingRespondErrMsg(c, errMsg, http.StatusBadRequest)
			return true
		}
		pageRequest.PageSize = &pageSize
	}

	queryPageToken := framework.GetQueryValue(c, PageTokenParam)
	if queryPageToken == nil {
		return false
	}
	errMsg := "token value cannot be decoded"
	tokenData, err := base64.RawURLEncoding.DecodeString(*queryPageToken)
	if err != nil {
		framework.LoggingRespondErrWithMsg(c, err, errMsg, http.StatusBadRequest)
		return true
	}
	var pageToken PageToken
	if err = json.Unmarshal(tokenData, &pageToken); err != nil {
		framework.LoggingRespondErrWithMsg(c, err, errMsg, http.StatusBadRequest)
		return true
	}
	pageTokenValues, err := url.ParseQuery(pageToken.EncodedQuery)
	if err != nil {
		framework.LoggingRespondErrWithMsg(c, err, errMsg, http.StatusBadRequest)
		return true
	}

	query := pageTokenQuery(c)
	if !reflect.DeepEqual(pageTokenValues, query) {
		logrus.Warnf("expected query from token to be equal to query from request. token: %v\nrequest: %v", pageTokenValues, query)
		framework.LoggingRespondErrMsg(c, "page token must be for the same query", http.StatusBadRequest)
		return true
	}
	pageRequest.PageToken = &pageToken.NextPageToken
	return false
}

func pageTokenQuery(c *gin.Context) url.Values {
	query := c.Request.URL.Query()
	delete(query, PageTokenParam)
	delete(query, PageSizeParam)
	return query
}

// MaybeSetNextPageToken encodes serviceNextPageToken together with the request query and assigns it to
// respNextPageToken, which cannot be nil. Nothing happens on the last page. Failures are responded to with a
// 500, and the return value reports whether that happened.
func MaybeSetNextPageToken(c *gin.Context, serviceNextPageToken string, respNextPageToken *string) bool {
	if serviceNextPageToken == "" {
		return false
	}
	pageToken := PageToken{
		EncodedQuery:  pageTokenQuery(c).Encode(),
		NextPageToken: serviceNextPageToken,
	}
	nextPageTokenData, err := json.Marshal(pageToken)
	if err != nil {
		framework.LoggingRespondErrWithMsg(c, err, "marshalling page token", http.StatusInternalServerError)
		return true
	}
	*respNextPageToken = base64.RawURLEncoding.EncodeToString(nextPageTokenData)
	return false
}

// PageRequest holds the pagination query params; nil fields were absent. Without a page size the whole
// listing is returned.
type PageRequest struct {
	PageSize  *int    `json:"pageSize,omitempty"`
	PageToken *string `json:"pageToken,omitempty"`
}

func (r *PageRequest) ToServicePage() *did.Page {
	page := did.Page{Size: -1}
	if r == nil {
		return &page
	}
	if r.PageSize != nil {
		page.Size = *r.PageSize
	}
	if r.PageToken != nil {
		page.Token = *r.PageToken
	}
	return &page
}
