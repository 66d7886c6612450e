package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"blib/internal/models"
	"blib/internal/services"
)

// Handler exposes the engine's operations over HTTP. Routing is thin: parse,
// delegate, map domain errors to statuses.
type Handler struct {
	catalog        services.CatalogService
	lending        services.LendingService
	reservations   services.ReservationService
	subscribers    services.SubscriberService
	issues         services.IssueService
	notifications  services.NotificationService
	reconciliation services.ReconciliationService
}

func RegisterRoutes(
	r *gin.Engine,
	catalog services.CatalogService,
	lending services.LendingService,
	reservations services.ReservationService,
	subscribers services.SubscriberService,
	issues services.IssueService,
	notifications services.NotificationService,
	reconciliation services.ReconciliationService,
) {
	h := &Handler{
		catalog:        catalog,
		lending:        lending,
		reservations:   reservations,
		subscribers:    subscribers,
		issues:         issues,
		notifications:  notifications,
		reconciliation: reconciliation,
	}

	// Subscriber management
	r.POST("/subscribers", h.registerSubscriber)
	r.PATCH("/subscribers/:id/contact", h.updateContact)
	r.GET("/subscribers", h.listSubscribers)
	r.GET("/subscribers/:id", h.getSubscriber)

	// Catalog
	r.POST("/books", h.addBook)
	r.PATCH("/books/:id/copies", h.setTotalCopies)
	r.GET("/books", h.listBooks)
	r.GET("/books/search", h.searchBooks)
	r.GET("/books/:id", h.getAvailability)

	// Lending
	r.POST("/books/:id/borrow", h.borrowBook)
	r.POST("/books/:id/return", h.returnBook)
	r.POST("/records/:id/extend", h.extendRecord)
	r.GET("/subscribers/:id/borrowed", h.listBorrowed)

	// Reservations
	r.POST("/books/:id/reservations", h.reserveBook)
	r.DELETE("/reservations/:id", h.cancelReservation)
	r.GET("/subscribers/:id/reservations", h.listReservations)

	// Issues
	r.POST("/books/:id/lost", h.reportLost)
	r.POST("/issues/:id/resolve", h.resolveIssue)
	r.GET("/subscribers/:id/issues", h.listIssues)

	// Notifications
	r.GET("/users/:id/messages", h.listMessages)

	// Reconciliation
	r.GET("/reports", h.listReports)
	r.POST("/admin/sweep/daily", h.runDailySweep)
	r.POST("/admin/sweep/monthly", h.runMonthlySweep)
}

// statusFor maps a domain error to its HTTP status. Unknown errors stay 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrBookNotFound),
		errors.Is(err, services.ErrSubscriberNotFound),
		errors.Is(err, services.ErrRecordNotFound),
		errors.Is(err, services.ErrReservationNotFound),
		errors.Is(err, services.ErrIssueNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrAccountFrozen),
		errors.Is(err, services.ErrNoCopyAvailable),
		errors.Is(err, services.ErrQueueFull),
		errors.Is(err, services.ErrDuplicateReservation),
		errors.Is(err, services.ErrDuplicateBook),
		errors.Is(err, services.ErrDuplicateSubscriber),
		errors.Is(err, services.ErrDuplicateIssue),
		errors.Is(err, services.ErrExtensionBlocked),
		errors.Is(err, services.ErrInvalidState),
		errors.Is(err, services.ErrNegativeCopies):
		return http.StatusConflict
	case errors.Is(err, services.ErrInvalidDate):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return uuid.Nil, false
	}
	return id, true
}

type registerSubscriberRequest struct {
	SubscriptionNumber string `json:"subscription_number" binding:"required"`
	Name               string `json:"name" binding:"required"`
	Email              string `json:"email" binding:"required,email"`
	MobilePhoneNumber  string `json:"mobile_phone_number" binding:"required"`
}

func (h *Handler) registerSubscriber(c *gin.Context) {
	var req registerSubscriberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sub, err := h.subscribers.Register(&models.Subscriber{
		SubscriptionNumber: req.SubscriptionNumber,
		Name:               req.Name,
		Email:              req.Email,
		MobilePhoneNumber:  req.MobilePhoneNumber,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, sub)
}

type updateContactRequest struct {
	Email             string `json:"email" binding:"required,email"`
	MobilePhoneNumber string `json:"mobile_phone_number" binding:"required"`
}

func (h *Handler) updateContact(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req updateContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sub, err := h.subscribers.UpdateContactDetails(id, req.Email, req.MobilePhoneNumber)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

func (h *Handler) listSubscribers(c *gin.Context) {
	subs, err := h.subscribers.FetchSubscribers()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, subs)
}

func (h *Handler) getSubscriber(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	sub, err := h.subscribers.GetSubscriber(id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

type addBookRequest struct {
	Title       string `json:"title" binding:"required"`
	Author      string `json:"author" binding:"required"`
	Subject     string `json:"subject"`
	Description string `json:"description"`
	Location    string `json:"location"`
	Barcode     string `json:"barcode" binding:"required"`
	TotalCopies int    `json:"total_copies" binding:"required,min=1"`
}

func (h *Handler) addBook(c *gin.Context) {
	var req addBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	book, err := h.catalog.AddBook(&models.Book{
		Title:       req.Title,
		Author:      req.Author,
		Subject:     req.Subject,
		Description: req.Description,
		Location:    req.Location,
		Barcode:     req.Barcode,
		TotalCopies: req.TotalCopies,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, book)
}

type setTotalCopiesRequest struct {
	TotalCopies int `json:"total_copies" binding:"required,min=0"`
}

func (h *Handler) setTotalCopies(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req setTotalCopiesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	book, err := h.catalog.SetTotalCopies(id, req.TotalCopies)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, book)
}

func (h *Handler) listBooks(c *gin.Context) {
	books, err := h.catalog.ListBooks()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, books)
}

func (h *Handler) searchBooks(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing query parameter q"})
		return
	}
	books, err := h.catalog.SearchBooks(query)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, books)
}

func (h *Handler) getAvailability(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	book, err := h.catalog.GetAvailability(id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, book)
}

type subscriberActionRequest struct {
	SubscriberID string `json:"subscriber_id" binding:"required,uuid"`
}

func (r subscriberActionRequest) subscriberID() uuid.UUID {
	id, _ := uuid.Parse(r.SubscriberID)
	return id
}

func (h *Handler) borrowBook(c *gin.Context) {
	bookID, ok := pathID(c)
	if !ok {
		return
	}
	var req subscriberActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	record, err := h.lending.Borrow(req.subscriberID(), bookID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

func (h *Handler) returnBook(c *gin.Context) {
	bookID, ok := pathID(c)
	if !ok {
		return
	}
	var req subscriberActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	record, err := h.lending.Return(req.subscriberID(), bookID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

type extendRequest struct {
	NewDueDate  string `json:"new_due_date" binding:"required"`
	RequestedBy string `json:"requested_by"`
}

func (h *Handler) extendRecord(c *gin.Context) {
	recordID, ok := pathID(c)
	if !ok {
		return
	}
	var req extendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	newDueDate, err := time.Parse("2006-01-02", req.NewDueDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "new_due_date must be YYYY-MM-DD"})
		return
	}

	record, err := h.lending.Extend(recordID, req.RequestedBy, newDueDate)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *Handler) listBorrowed(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	records, err := h.lending.FetchBorrowedBooks(id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

func (h *Handler) reserveBook(c *gin.Context) {
	bookID, ok := pathID(c)
	if !ok {
		return
	}
	var req subscriberActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reservation, err := h.reservations.Reserve(bookID, req.subscriberID())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, reservation)
}

func (h *Handler) cancelReservation(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.reservations.Cancel(id); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "canceled"})
}

func (h *Handler) listReservations(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	list, err := h.reservations.FetchReservations(id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) reportLost(c *gin.Context) {
	bookID, ok := pathID(c)
	if !ok {
		return
	}
	var req subscriberActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	issue, err := h.issues.ReportLost(req.subscriberID(), bookID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, issue)
}

func (h *Handler) resolveIssue(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.issues.ResolveIssue(id); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "resolved"})
}

func (h *Handler) listIssues(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	issues, err := h.issues.FetchIssues(id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, issues)
}

func (h *Handler) listMessages(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	role := c.DefaultQuery("role", services.RoleSubscriber)
	msgs, err := h.notifications.FetchMessages(id, role)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

func (h *Handler) listReports(c *gin.Context) {
	reportType := c.Query("type")
	monthStr := c.Query("month")
	if reportType == "" || monthStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing query parameters type and month"})
		return
	}
	month, err := time.Parse("2006-01", monthStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "month must be YYYY-MM"})
		return
	}

	reports, err := h.reconciliation.FetchReports(reportType, month)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, reports)
}

func (h *Handler) runDailySweep(c *gin.Context) {
	summary, err := h.reconciliation.RunDaily(time.Now().UTC())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) runMonthlySweep(c *gin.Context) {
	monthStr := c.Query("month")
	if monthStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing query parameter month"})
		return
	}
	month, err := time.Parse("2006-01", monthStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "month must be YYYY-MM"})
		return
	}

	if err := h.reconciliation.RunMonthly(month); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "aggregated", "month": month.Format("2006-01")})
}
