package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/zinrai/ippool-go/internal/domain"
	"github.com/zinrai/ippool-go/internal/usecase"
)

type IPAMHandler struct {
	useCase *usecase.IPAMUseCase
}

func NewIPAMHandler(useCase *usecase.IPAMUseCase) *IPAMHandler {
	return &IPAMHandler{useCase: useCase}
}

// Register mounts the pool and assignment routes on r below prefix. Path
// ids must be numeric; anything else falls through to the router's not
// found handler.
func (h *IPAMHandler) Register(r *mux.Router, prefix string) {
	route := func(path string, f http.HandlerFunc, method string) {
		r.HandleFunc(prefix+path, f).Methods(method)
	}
	route("/pools", h.listPools, http.MethodGet)
	route("/pools", h.createPool, http.MethodPost)
	route("/pools/{id:[0-9]+}", h.getPool, http.MethodGet)
	route("/pools/{id:[0-9]+}", h.updatePool, http.MethodPut)
	route("/pools/{id:[0-9]+}", h.deletePool, http.MethodDelete)
	route("/pools/{id:[0-9]+}/usage", h.poolUsage, http.MethodGet)

	route("/pools/{poolId:[0-9]+}/assignments", h.listPoolAssignments, http.MethodGet)
	route("/pools/{poolId:[0-9]+}/assignments", h.addAssignment, http.MethodPost)
	route("/pools/{poolId:[0-9]+}/assignments/{assignmentId:[0-9]+}", h.updateAssignment, http.MethodPut)
	route("/pools/{poolId:[0-9]+}/assignments/{assignmentId:[0-9]+}", h.deleteAssignment, http.MethodDelete)

	route("/ip-assignments", h.listAssignments, http.MethodGet)
}

type createPoolRequest struct {
	Name         string  `json:"name"`
	Subnet       string  `json:"subnet"`
	Mask         string  `json:"mask"`
	Gateway      string  `json:"gateway"`
	DNSPrimary   *string `json:"dns_primary"`
	DNSSecondary *string `json:"dns_secondary"`
}

// updatePoolRequest: an explicit null clears a DNS server; null for a
// required field is the same as leaving it out.
type updatePoolRequest struct {
	Name         *string                 `json:"name"`
	Subnet       *string                 `json:"subnet"`
	Mask         *string                 `json:"mask"`
	Gateway      *string                 `json:"gateway"`
	DNSPrimary   domain.Nullable[string] `json:"dns_primary"`
	DNSSecondary domain.Nullable[string] `json:"dns_secondary"`
}

type addAssignmentRequest struct {
	IP             string  `json:"ip"`
	Status         *string `json:"status"`
	CustomerName   *string `json:"customer_name"`
	CustomerID     *int    `json:"customer_id"`
	AssignmentType *string `json:"assignment_type"`
	MACAddress     *string `json:"mac_address"`
}

type updateAssignmentRequest struct {
	Status         *string                 `json:"status"`
	CustomerName   domain.Nullable[string] `json:"customer_name"`
	CustomerID     domain.Nullable[int]    `json:"customer_id"`
	AssignmentType domain.Nullable[string] `json:"assignment_type"`
	MACAddress     domain.Nullable[string] `json:"mac_address"`
	LastSeen       domain.Nullable[string] `json:"last_seen"`
}

type pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

type listPoolsResponse struct {
	Pools      []*domain.Pool `json:"pools"`
	Pagination pagination     `json:"pagination"`
}

// poolDetail always renders the assignments key, even for an empty pool.
type poolDetail struct {
	*domain.Pool
	Assignments []*domain.Assignment `json:"assignments"`
}

type poolResponse struct {
	Message string       `json:"message"`
	Pool    *domain.Pool `json:"pool"`
}

type assignmentResponse struct {
	Message    string             `json:"message"`
	Assignment *domain.Assignment `json:"assignment"`
}

func (h *IPAMHandler) listPools(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := positiveInt(q.Get("page"), usecase.DefaultPage)
	limit := positiveInt(q.Get("limit"), usecase.DefaultLimit)

	result, err := h.useCase.ListPools(r.Context(), page, limit)
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, listPoolsResponse{
		Pools: result.Pools,
		Pagination: pagination{
			Page:  result.Page,
			Limit: result.Limit,
			Total: result.Total,
			Pages: result.Pages,
		},
	})
}

func (h *IPAMHandler) getPool(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	pool, err := h.useCase.GetPool(r.Context(), id)
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	assignments := pool.Assignments
	if assignments == nil {
		assignments = []*domain.Assignment{}
	}
	writeJSON(w, http.StatusOK, poolDetail{Pool: pool, Assignments: assignments})
}

func (h *IPAMHandler) createPool(w http.ResponseWriter, r *http.Request) {
	var req createPoolRequest
	if !decodeBody(w, r, &req) {
		return
	}
	pool, err := h.useCase.CreatePool(r.Context(), usecase.CreatePoolInput{
		Name:         req.Name,
		Subnet:       req.Subnet,
		Mask:         req.Mask,
		Gateway:      req.Gateway,
		DNSPrimary:   req.DNSPrimary,
		DNSSecondary: req.DNSSecondary,
	})
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusCreated, poolResponse{Message: "IP pool created successfully", Pool: pool})
}

func (h *IPAMHandler) updatePool(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req updatePoolRequest
	if !decodeBody(w, r, &req) {
		return
	}
	pool, err := h.useCase.UpdatePool(r.Context(), id, domain.PoolUpdate{
		Name:         req.Name,
		Subnet:       req.Subnet,
		Mask:         req.Mask,
		Gateway:      req.Gateway,
		DNSPrimary:   req.DNSPrimary,
		DNSSecondary: req.DNSSecondary,
	})
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, poolResponse{Message: "IP pool updated successfully", Pool: pool})
}

func (h *IPAMHandler) deletePool(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.useCase.DeletePool(r.Context(), id); err != nil {
		respondError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "IP pool deleted successfully"})
}

func (h *IPAMHandler) poolUsage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	usage, err := h.useCase.PoolUsage(r.Context(), id)
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, usage)
}

func (h *IPAMHandler) listPoolAssignments(w http.ResponseWriter, r *http.Request) {
	poolID, ok := pathID(w, r, "poolId")
	if !ok {
		return
	}
	filter, err := assignmentFilter(r, false)
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	assignments, err := h.useCase.ListPoolAssignments(r.Context(), poolID, filter)
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, assignments)
}

func (h *IPAMHandler) listAssignments(w http.ResponseWriter, r *http.Request) {
	filter, err := assignmentFilter(r, true)
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	assignments, err := h.useCase.ListAssignments(r.Context(), filter)
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, assignments)
}

func (h *IPAMHandler) addAssignment(w http.ResponseWriter, r *http.Request) {
	poolID, ok := pathID(w, r, "poolId")
	if !ok {
		return
	}
	var req addAssignmentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	in := usecase.AddAssignmentInput{
		IP:             req.IP,
		CustomerName:   req.CustomerName,
		CustomerID:     req.CustomerID,
		AssignmentType: req.AssignmentType,
		MACAddress:     req.MACAddress,
	}
	if req.Status != nil {
		status := domain.AssignmentStatus(*req.Status)
		in.Status = &status
	}
	assignment, err := h.useCase.AddAssignment(r.Context(), poolID, in)
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusCreated, assignmentResponse{Message: "IP assignment created successfully", Assignment: assignment})
}

func (h *IPAMHandler) updateAssignment(w http.ResponseWriter, r *http.Request) {
	poolID, ok := pathID(w, r, "poolId")
	if !ok {
		return
	}
	id, ok := pathID(w, r, "assignmentId")
	if !ok {
		return
	}
	var req updateAssignmentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	update := domain.AssignmentUpdate{
		CustomerName:   req.CustomerName,
		CustomerID:     req.CustomerID,
		AssignmentType: req.AssignmentType,
		MACAddress:     req.MACAddress,
	}
	if req.Status != nil {
		status := domain.AssignmentStatus(*req.Status)
		update.Status = &status
	}
	switch {
	case req.LastSeen.Set && req.LastSeen.Value == nil:
		update.LastSeen = domain.SetNull[time.Time]()
	case req.LastSeen.Set:
		seen, err := time.Parse(time.RFC3339, *req.LastSeen.Value)
		if err != nil {
			respondError(r.Context(), w, domain.ErrInvalidLastSeen)
			return
		}
		update.LastSeen = domain.SetTo(seen)
	}
	assignment, err := h.useCase.UpdateAssignment(r.Context(), poolID, id, update)
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, assignmentResponse{Message: "IP assignment updated successfully", Assignment: assignment})
}

func (h *IPAMHandler) deleteAssignment(w http.ResponseWriter, r *http.Request) {
	poolID, ok := pathID(w, r, "poolId")
	if !ok {
		return
	}
	id, ok := pathID(w, r, "assignmentId")
	if !ok {
		return
	}
	if err := h.useCase.DeleteAssignment(r.Context(), poolID, id); err != nil {
		respondError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "IP assignment deleted successfully"})
}

// pathID reads a numeric route variable. Values that overflow int cannot
// name a record and are answered with 404.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)[name])
	if err != nil {
		writeError(w, http.StatusNotFound, "Route not found")
		return 0, false
	}
	return id, true
}

// decodeBody decodes a JSON request body into v. An empty body decodes as {}.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	writeError(w, http.StatusBadRequest, "Invalid JSON body")
	return false
}

func positiveInt(raw string, fallback int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

func assignmentFilter(r *http.Request, withPool bool) (domain.AssignmentFilter, error) {
	var filter domain.AssignmentFilter
	q := r.URL.Query()
	if s := q.Get("status"); s != "" {
		status := domain.AssignmentStatus(s)
		filter.Status = &status
	}
	if s := q.Get("customer_id"); s != "" {
		id, err := strconv.Atoi(s)
		if err != nil {
			return filter, domain.NewValidationError("customer_id must be an integer")
		}
		filter.CustomerID = &id
	}
	if withPool {
		if s := q.Get("ip_pool_id"); s != "" {
			id, err := strconv.Atoi(s)
			if err != nil {
				return filter, domain.NewValidationError("ip_pool_id must be an integer")
			}
			filter.PoolID = &id
		}
	}
	return filter, nil
}
