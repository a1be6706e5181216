package instrument

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	jsonpatch "github.com/evanphx/json-patch"
	"github.com/gin-gonic/gin"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/klog/v2"
	"visagateway/pkg/apis"
	"visagateway/pkg/apis/response"
	"visagateway/pkg/session"
)

func InstallHandler(group *gin.RouterGroup, mgr *Manager) {
	group.POST("/sessions", createSession(mgr))
	group.POST("/sessions/connectAll", connectAll(mgr))
	group.GET("/sessions", listSessions(mgr))
	group.GET("/sessions/active", getActiveSession(mgr))
	group.GET("/sessions/negotiation", negotiationStatus(mgr))
	group.GET("/sessions/:id", getSessionById(mgr))
	group.PUT("/sessions/:id/activate", activateSessionById(mgr))
	group.PATCH("/sessions/:id", patchSessionById(mgr))
	group.DELETE("/sessions/:id", deleteSession(mgr))
	group.GET("/sessions/:id/quantities/:quantity", queryQuantity(mgr))
	group.PUT("/sessions/:id/quantities/:quantity", setQuantity(mgr))
	group.PUT("/sessions/:id/display", showDisplayText(mgr))
	group.DELETE("/sessions/:id/display", clearDisplay(mgr))
}

func createSession(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var target struct {
			Resource string `json:"resource"`
		}
		if err := c.ShouldBindJSON(&target); err != nil {
			klog.V(2).InfoS("Failed to parse session request", "err", err)
			c.JSON(http.StatusBadRequest, response.NewMultiError(response.ErrMalformedJSON))
			return
		}
		if len(strings.TrimSpace(target.Resource)) == 0 {
			c.JSON(http.StatusBadRequest, response.NewMultiError(response.ErrRequestBody))
			return
		}

		s, err := mgr.Connect(c.Request.Context(), target.Resource)
		if err != nil {
			c.JSON(connectStatus(err), response.NewMultiError(err))
			return
		}

		c.Header(apis.ETag, fmt.Sprintf("%s", s.Version()))
		c.Header(apis.Location, fmt.Sprintf("https://%s%s/%s", c.Request.Host, c.Request.RequestURI, s.ID()))
		c.JSON(http.StatusCreated, s)
	}
}

func connectAll(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var target struct {
			Resources []string `json:"resources"`
		}
		if err := c.ShouldBindJSON(&target); err != nil {
			klog.V(2).InfoS("Failed to parse session request", "err", err)
			c.JSON(http.StatusBadRequest, response.NewMultiError(response.ErrMalformedJSON))
			return
		}

		sessions, errs := mgr.ConnectAll(c.Request.Context(), target.Resources)
		if errs != nil {
			c.JSON(http.StatusMultiStatus, gin.H{"sessions": sessions, "errors": errs})
			return
		}
		c.JSON(http.StatusOK, gin.H{"sessions": sessions})
	}
}

func listSessions(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var filter *session.Filter
		if v := c.Query(apis.Filter); len(v) > 0 {
			raw := map[string]interface{}{}
			if err := json.Unmarshal([]byte(v), &raw); err != nil {
				c.JSON(http.StatusBadRequest, response.NewMultiError(response.ErrMalformedJSON))
				return
			}
			filter = session.ParseFilter(raw)
		}
		c.JSON(http.StatusOK, gin.H{"sessions": mgr.ListSessions(filter)})
	}
}

func getActiveSession(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		s := mgr.ActiveSession()
		if s == nil {
			c.Status(http.StatusNotFound)
			return
		}
		c.Header(apis.ETag, fmt.Sprintf("%s", s.Version()))
		c.JSON(http.StatusOK, s)
	}
}

func negotiationStatus(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		attempts, max := mgr.NegotiationProgress()
		c.JSON(http.StatusOK, gin.H{"probeAttempts": attempts, "maxAttemptsPerScan": max})
	}
}

func getSessionById(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		s, err := mgr.GetSessionById(id)
		if err != nil {
			c.JSON(http.StatusNotFound, response.NewMultiError(response.ErrSessionNotFound(id)))
			return
		}
		c.Header(apis.ETag, fmt.Sprintf("%s", s.Version()))
		c.JSON(http.StatusOK, s)
	}
}

func activateSessionById(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		s, err := mgr.Activate(id)
		if err != nil {
			if os.IsNotExist(err) {
				c.JSON(http.StatusNotFound, response.NewMultiError(response.ErrSessionNotFound(id)))
			} else {
				c.JSON(http.StatusBadRequest, response.NewMultiError(err))
			}
			return
		}
		c.JSON(http.StatusOK, s)
	}
}

// sessionPatch is the mutable view a PATCH may rewrite.
type sessionPatch struct {
	Label string `json:"label"`
}

func patchSessionById(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer c.Request.Body.Close()

		contentType := c.GetHeader("Content-Type")
		// Remove "; charset=" if included in header.
		if idx := strings.Index(contentType, ";"); idx > 0 {
			contentType = contentType[:idx]
		}

		if !patchTypes.Has(contentType) {
			c.Status(http.StatusUnsupportedMediaType)
			return
		}

		eTag := c.GetHeader(apis.IfMatch)
		if len(eTag) == 0 {
			c.Status(http.StatusPreconditionRequired)
			return
		}

		patchBytes, err := io.ReadAll(c.Request.Body)
		if err != nil {
			klog.V(3).InfoS("Failed to read", "err", err)
			c.Status(http.StatusInternalServerError)
			return
		}

		id := c.Param("id")
		old, err := mgr.GetSessionById(id)
		if err != nil {
			c.JSON(http.StatusNotFound, response.NewMultiError(response.ErrSessionNotFound(id)))
			return
		}

		versionedJS, err := json.Marshal(&sessionPatch{Label: old.Label()})
		if err != nil {
			klog.V(3).InfoS("Failed to marshal", "err", err)
			c.Status(http.StatusInternalServerError)
			return
		}

		patchedJS, err := applyJSPatch(types.PatchType(contentType), patchBytes, versionedJS)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.NewMultiError(err))
			return
		}

		var patched sessionPatch
		if err := json.NewDecoder(bytes.NewBuffer(patchedJS)).Decode(&patched); err != nil {
			klog.V(3).InfoS("Failed to decode", "err", err)
			c.JSON(http.StatusBadRequest, response.NewMultiError(response.ErrMalformedJSON))
			return
		}

		updated, err := mgr.SetLabel(id, eTag, patched.Label)
		if err != nil {
			switch {
			case os.IsNotExist(err):
				c.JSON(http.StatusNotFound, response.NewMultiError(response.ErrSessionNotFound(id)))
			case errors.Is(err, apis.ErrMismatch):
				c.Status(http.StatusPreconditionFailed)
			default:
				if response.IsResponseError(err) {
					c.JSON(http.StatusBadRequest, response.NewMultiError(err))
				} else {
					c.Status(http.StatusInternalServerError)
				}
			}
			return
		}

		c.Header(apis.ETag, updated.Version())
		c.JSON(http.StatusOK, updated)
	}
}

func deleteSession(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		eTag := c.GetHeader(apis.IfMatch)
		if len(eTag) == 0 {
			c.Status(http.StatusPreconditionRequired)
			return
		}
		if err := mgr.Disconnect(id, eTag); err != nil {
			if os.IsNotExist(err) {
				c.JSON(http.StatusNotFound, response.NewMultiError(response.ErrSessionNotFound(id)))
			} else if errors.Is(err, apis.ErrMismatch) {
				c.Status(http.StatusPreconditionFailed)
			} else {
				c.JSON(http.StatusBadRequest, response.NewMultiError(err))
			}
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func queryQuantity(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		quantity := c.Param("quantity")
		channel := c.Query(apis.Channel)

		value, err := mgr.QueryQuantity(c.Request.Context(), id, quantity, channel)
		if err != nil {
			writeLineError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"quantity": quantity, "channel": channel, "value": value})
	}
}

func setQuantity(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		quantity := c.Param("quantity")

		var target struct {
			Channel string `json:"channel"`
			Value   string `json:"value"`
		}
		if err := c.ShouldBindJSON(&target); err != nil {
			klog.V(2).InfoS("Failed to parse quantity request", "err", err)
			c.JSON(http.StatusBadRequest, response.NewMultiError(response.ErrMalformedJSON))
			return
		}
		channel := target.Channel
		if channel == "" {
			channel = c.Query(apis.Channel)
		}

		if err := mgr.SetQuantity(c.Request.Context(), id, quantity, channel, target.Value); err != nil {
			writeLineError(c, err)
			return
		}
		c.Status(http.StatusAccepted)
	}
}

func showDisplayText(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var target struct {
			Text string `json:"text"`
		}
		if err := c.ShouldBindJSON(&target); err != nil {
			klog.V(2).InfoS("Failed to parse display request", "err", err)
			c.JSON(http.StatusBadRequest, response.NewMultiError(response.ErrMalformedJSON))
			return
		}

		if err := mgr.ShowDisplayText(c.Request.Context(), c.Param("id"), target.Text); err != nil {
			writeLineError(c, err)
			return
		}
		c.Status(http.StatusAccepted)
	}
}

func clearDisplay(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := mgr.ClearDisplay(c.Request.Context(), c.Param("id")); err != nil {
			writeLineError(c, err)
			return
		}
		c.Status(http.StatusAccepted)
	}
}

func connectStatus(err error) int {
	var re interface{ GetCode() response.ErrCode }
	if errors.As(err, &re) {
		switch re.GetCode() {
		case response.ErrCodeResourceBusy:
			return http.StatusConflict
		case response.ErrCodeNegotiationExhausted, response.ErrCodeConnectFailed:
			return http.StatusBadGateway
		}
	}
	return http.StatusBadRequest
}

func writeLineError(c *gin.Context, err error) {
	switch {
	case os.IsNotExist(err):
		c.Status(http.StatusNotFound)
	case response.IsResponseError(err):
		var re interface{ GetCode() response.ErrCode }
		if errors.As(err, &re) && re.GetCode() == response.ErrCodeDialectUnresolved {
			c.JSON(http.StatusConflict, response.NewMultiError(err))
			return
		}
		c.JSON(http.StatusBadRequest, response.NewMultiError(err))
	default:
		c.JSON(http.StatusBadGateway, response.NewMultiError(err))
	}
}

func applyJSPatch(patchType types.PatchType, patchBytes, versionedJS []byte) (patchedJS []byte, err error) {
	switch patchType {
	case types.JSONPatchType:
		patchObj, err := jsonpatch.DecodePatch(patchBytes)
		if err != nil {
			return nil, response.ErrMalformedJSON
		}
		if len(patchObj) > maxJSONPatchOperations {
			klog.V(3).InfoS("Too many json patch operations", "count", len(patchObj))
			return nil, response.ErrMalformedJSON
		}
		patchedJS, err := patchObj.Apply(versionedJS)
		if err != nil {
			klog.V(3).InfoS("Failed to apply json patch", "err", err)
			return nil, response.ErrMalformedJSON
		}
		return patchedJS, nil
	case types.MergePatchType:
		patchedJS, err = jsonpatch.MergePatch(versionedJS, patchBytes)
		if err != nil {
			klog.V(3).InfoS("Failed to apply json merge patch", "err", err)
			return nil, response.ErrMalformedJSON
		}
		return patchedJS, err
	default:
		// only here as a safety net - gin filters content-type
		return nil, fmt.Errorf("unknown Content-Type header for patch: %v", patchType)
	}
}
