package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/dzfacture/facture_backend/config"
	"github.com/dzfacture/facture_backend/middlewares"
	"github.com/dzfacture/facture_backend/models"
	"github.com/dzfacture/facture_backend/models/reports"
	"github.com/dzfacture/facture_backend/utils"
	"github.com/dzfacture/facture_backend/workflow"
)

const defaultPort = "8080"

// respondError maps domain errors onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	switch {
	case utils.IsValidationError(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, utils.ErrorRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, utils.ErrorUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, utils.ErrorPeriodLocked),
		errors.Is(err, utils.ErrorDeclarationFinalized),
		errors.Is(err, utils.ErrorInvoiceImmutable):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func pathInt(c *gin.Context, name string) (int, bool) {
	v, err := strconv.Atoi(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be an integer"})
		return 0, false
	}
	return v, true
}

func setupRouter() *gin.Engine {
	r := gin.Default()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization", "X-Business-Id", "X-Correlation-Id")
	r.Use(cors.New(corsConfig))
	r.Use(middlewares.CorrelationMiddleware())
	r.Use(middlewares.AuthMiddleware())
	r.Use(middlewares.BusinessMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/auth/signup", func(c *gin.Context) {
		var input models.NewUser
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
			return
		}
		user, err := models.CreateUser(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, user)
	})

	r.POST("/auth/login", func(c *gin.Context) {
		var input struct {
			Email    string `json:"email" binding:"required"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
			return
		}
		token, err := models.Authenticate(c.Request.Context(), input.Email, input.Password)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token})
	})

	r.GET("/auth/me", func(c *gin.Context) {
		userId, ok := utils.GetUserIdFromContext(c.Request.Context())
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		user, err := models.GetUserById(c.Request.Context(), userId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, user)
	})

	r.POST("/businesses", func(c *gin.Context) {
		var input models.NewBusiness
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
			return
		}
		business, err := models.CreateBusiness(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, business)
	})

	r.PUT("/businesses/prefixes", func(c *gin.Context) {
		var input struct {
			DocumentType models.InvoiceType `json:"document_type" binding:"required"`
			Prefix       string             `json:"prefix" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
			return
		}
		ctx := c.Request.Context()
		businessId, ok := utils.GetBusinessIdFromContext(ctx)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "business id is required"})
			return
		}
		if err := models.SetDocumentPrefix(ctx, businessId, input.DocumentType, input.Prefix); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/customers", func(c *gin.Context) {
		var input models.NewCustomer
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
			return
		}
		customer, err := models.CreateCustomer(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, customer)
	})

	r.GET("/customers", func(c *gin.Context) {
		customers, err := models.GetCustomersAll(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, customers)
	})

	r.POST("/invoices", func(c *gin.Context) {
		var input models.NewInvoice
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
			return
		}
		invoice, err := models.CreateInvoice(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, invoice)
	})

	r.GET("/invoices", func(c *gin.Context) {
		invoices, err := models.GetInvoicesAll(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, invoices)
	})

	r.GET("/invoices/:id", func(c *gin.Context) {
		id, ok := pathInt(c, "id")
		if !ok {
			return
		}
		invoice, err := models.GetInvoice(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, invoice)
	})

	r.PUT("/invoices/:id", func(c *gin.Context) {
		id, ok := pathInt(c, "id")
		if !ok {
			return
		}
		var input models.NewInvoice
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
			return
		}
		invoice, err := models.UpdateInvoice(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, invoice)
	})

	r.DELETE("/invoices/:id", func(c *gin.Context) {
		id, ok := pathInt(c, "id")
		if !ok {
			return
		}
		invoice, err := models.DeleteInvoice(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, invoice)
	})

	r.POST("/invoices/:id/issue", func(c *gin.Context) {
		id, ok := pathInt(c, "id")
		if !ok {
			return
		}
		invoice, err := models.IssueInvoice(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, invoice)
	})

	r.POST("/invoices/:id/cancel", func(c *gin.Context) {
		id, ok := pathInt(c, "id")
		if !ok {
			return
		}
		invoice, err := models.CancelInvoice(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, invoice)
	})

	r.POST("/invoices/:id/payments", func(c *gin.Context) {
		id, ok := pathInt(c, "id")
		if !ok {
			return
		}
		var input models.NewPayment
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
			return
		}
		input.InvoiceId = id
		invoice, err := models.RecordPayment(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, invoice)
	})

	r.POST("/invoices/:id/mark-paid", func(c *gin.Context) {
		id, ok := pathInt(c, "id")
		if !ok {
			return
		}
		var input struct {
			Method models.PaymentMethod `json:"method"`
		}
		_ = c.ShouldBindJSON(&input)
		invoice, err := models.MarkInvoicePaid(c.Request.Context(), id, input.Method)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, invoice)
	})

	r.POST("/invoices/:id/mark-unpaid", func(c *gin.Context) {
		id, ok := pathInt(c, "id")
		if !ok {
			return
		}
		invoice, err := models.MarkInvoiceUnpaid(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, invoice)
	})

	r.POST("/purchases", func(c *gin.Context) {
		var input models.NewPurchaseInvoice
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
			return
		}
		purchase, err := models.CreatePurchaseInvoice(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, purchase)
	})

	r.GET("/purchases", func(c *gin.Context) {
		purchases, err := models.GetPurchaseInvoicesAll(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, purchases)
	})

	r.DELETE("/purchases/:id", func(c *gin.Context) {
		id, ok := pathInt(c, "id")
		if !ok {
			return
		}
		purchase, err := models.DeletePurchaseInvoice(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, purchase)
	})

	r.GET("/periods", func(c *gin.Context) {
		closures, err := models.GetPeriodClosuresAll(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, closures)
	})

	r.POST("/periods/close", func(c *gin.Context) {
		var input models.NewPeriodClosure
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
			return
		}
		closure, err := models.ClosePeriod(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, closure)
	})

	r.POST("/periods/:id/reopen", func(c *gin.Context) {
		id, ok := pathInt(c, "id")
		if !ok {
			return
		}
		closure, err := models.ReopenPeriod(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, closure)
	})

	r.GET("/g50/:year/:month", func(c *gin.Context) {
		year, ok := pathInt(c, "year")
		if !ok {
			return
		}
		month, ok := pathInt(c, "month")
		if !ok {
			return
		}
		decl, err := models.GetG50(c.Request.Context(), year, month)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, decl)
	})

	r.POST("/g50/:year/:month/finalize", func(c *gin.Context) {
		year, ok := pathInt(c, "year")
		if !ok {
			return
		}
		month, ok := pathInt(c, "month")
		if !ok {
			return
		}
		var manual models.G50ManualFields
		_ = c.ShouldBindJSON(&manual)
		decl, err := models.FinalizeG50(c.Request.Context(), year, month, &manual)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, decl)
	})

	r.GET("/g50/:year/:month/export.csv", func(c *gin.Context) {
		year, ok := pathInt(c, "year")
		if !ok {
			return
		}
		month, ok := pathInt(c, "month")
		if !ok {
			return
		}
		c.Header("Content-Type", "text/csv")
		c.Header("Content-Disposition", "attachment; filename=g50.csv")
		if err := reports.WriteG50Csv(c.Request.Context(), c.Writer, year, month); err != nil {
			respondError(c, err)
		}
	})

	r.GET("/g50/:year/:month/export.xlsx", func(c *gin.Context) {
		year, ok := pathInt(c, "year")
		if !ok {
			return
		}
		month, ok := pathInt(c, "month")
		if !ok {
			return
		}
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", "attachment; filename=g50.xlsx")
		if err := reports.WriteG50Xlsx(c.Request.Context(), c.Writer, year, month); err != nil {
			respondError(c, err)
		}
	})

	r.GET("/g50/:year/:month/imports", func(c *gin.Context) {
		year, ok := pathInt(c, "year")
		if !ok {
			return
		}
		month, ok := pathInt(c, "month")
		if !ok {
			return
		}
		entries, err := models.GetG50ImportEntries(c.Request.Context(), year, month)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, entries)
	})

	r.POST("/g50/imports", func(c *gin.Context) {
		var input models.NewG50ImportEntry
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
			return
		}
		entry, err := models.AddG50ImportEntry(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, entry)
	})

	r.DELETE("/g50/imports/:id", func(c *gin.Context) {
		id, ok := pathInt(c, "id")
		if !ok {
			return
		}
		entry, err := models.DeleteG50ImportEntry(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, entry)
	})

	r.GET("/g12/:year", func(c *gin.Context) {
		year, ok := pathInt(c, "year")
		if !ok {
			return
		}
		report, err := models.GetG12(c.Request.Context(), year)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, report)
	})

	r.GET("/g12/:year/forecast", func(c *gin.Context) {
		year, ok := pathInt(c, "year")
		if !ok {
			return
		}
		forecast, err := models.GetG12Forecast(c.Request.Context(), year)
		if err != nil {
			respondError(c, err)
			return
		}
		if forecast == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no forecast for year"})
			return
		}
		c.JSON(http.StatusOK, forecast)
	})

	r.POST("/g12/forecast", func(c *gin.Context) {
		var input models.NewG12Forecast
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
			return
		}
		forecast, err := models.SaveG12Forecast(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, forecast)
	})

	r.GET("/webhooks", func(c *gin.Context) {
		subscriptions, err := models.GetWebhookSubscriptionsAll(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, subscriptions)
	})

	r.POST("/webhooks", func(c *gin.Context) {
		var input models.NewWebhookSubscription
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
			return
		}
		subscription, err := models.CreateWebhookSubscription(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, subscription)
	})

	r.DELETE("/webhooks/:id", func(c *gin.Context) {
		id, ok := pathInt(c, "id")
		if !ok {
			return
		}
		if err := models.DeleteWebhookSubscription(c.Request.Context(), id); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "deleted"})
	})

	return r
}

func main() {
	logger := config.GetLogger()

	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := setupRouter()

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	config.ConnectDatabaseWithRetry()
	config.ConnectRedis()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()

	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()
	go workflow.NewOutboxDispatcher(db, logger).Run(workerCtx)
	go workflow.NewReminderWorker(db, logger).Run(workerCtx)

	log.Println("Server started successfully on port " + port)

	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	cancelWorkers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("shutdown: " + err.Error())
	}
}
