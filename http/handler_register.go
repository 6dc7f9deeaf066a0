package http

import (
	"errors"
	"net/http"
	"strings"

	"jabberwocky238/jw238ddns/registry"
	"jabberwocky238/jw238ddns/types"

	"github.com/gin-gonic/gin"
)

// RegisterHandler handles the registration endpoints.
type RegisterHandler struct {
	svc     *registry.Service
	resync  Resyncer
	checker RecordChecker
}

// NewRegisterHandler creates a RegisterHandler.
func NewRegisterHandler(svc *registry.Service, resync Resyncer, checker RecordChecker) *RegisterHandler {
	return &RegisterHandler{svc: svc, resync: resync, checker: checker}
}

// Register handles GET /register/*path. Two segments register an A
// record (/register/:fqdn/:ip), three segments starting with "cname"
// register a CNAME (/register/cname/:existing/:new). A host literally
// named "cname" therefore still gets its A record.
func (h *RegisterHandler) Register(c *gin.Context) {
	segments := strings.Split(strings.Trim(c.Param("path"), "/"), "/")
	switch {
	case len(segments) == 2:
		h.registerA(c, segments[0], segments[1])
	case len(segments) == 3 && segments[0] == "cname":
		h.registerCNAME(c, segments[1], segments[2])
	default:
		Fail(c, http.StatusNotFound, "not found")
	}
}

func (h *RegisterHandler) registerA(c *gin.Context, fqdn, ip string) {
	record, err := h.svc.RegisterA(c.Request.Context(), fqdn, ip)
	if err != nil {
		failRegistration(c, err)
		return
	}
	OK(c, record)
}

func (h *RegisterHandler) registerCNAME(c *gin.Context, existing, newName string) {
	record, err := h.svc.RegisterCNAME(c.Request.Context(), existing, newName)
	if err != nil {
		failRegistration(c, err)
		return
	}
	OK(c, record)
}

// List handles GET /list.
func (h *RegisterHandler) List(c *gin.Context) {
	records, err := h.svc.ListAll(c.Request.Context())
	if err != nil {
		Fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []*types.DNSRecord{}
	}
	OK(c, records)
}

// Push handles POST /push by scheduling a full push on the next tick.
func (h *RegisterHandler) Push(c *gin.Context) {
	if h.resync == nil {
		Fail(c, http.StatusServiceUnavailable, "reconciliation loop not running")
		return
	}
	h.resync.ForceResync()
	OK(c, PushResponse{Scheduled: true})
}

// Check handles GET /check/:fqdn.
func (h *RegisterHandler) Check(c *gin.Context) {
	if h.checker == nil {
		Fail(c, http.StatusServiceUnavailable, "drift check not configured")
		return
	}

	name := types.NormalizeName(c.Param("fqdn"))
	records, err := h.svc.ListAll(c.Request.Context())
	if err != nil {
		Fail(c, http.StatusInternalServerError, err.Error())
		return
	}

	var record *types.DNSRecord
	for _, r := range records {
		if r.Name == name {
			record = r
			break
		}
	}
	if record == nil {
		Fail(c, http.StatusNotFound, "record not found")
		return
	}

	result, err := h.checker.Check(c.Request.Context(), record)
	if err != nil {
		Fail(c, http.StatusBadGateway, err.Error())
		return
	}
	OK(c, result)
}

// failRegistration maps registration errors to 400 for bad input and 500
// for everything else.
func failRegistration(c *gin.Context, err error) {
	switch {
	case errors.Is(err, types.ErrInvalidName),
		errors.Is(err, types.ErrInvalidAddress),
		errors.Is(err, types.ErrInvalidValue),
		errors.Is(err, types.ErrInvalidRecordType):
		Fail(c, http.StatusBadRequest, err.Error())
	default:
		Fail(c, http.StatusInternalServerError, err.Error())
	}
}
