// Package notifier pushes human-readable confirmation and alert messages
// to the WhatsApp bridge relay. The relay owns session state and retry
// policy; this side only dispatches and records the attempt.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"
)

type SendJob struct {
	Recipient string
	Message   string
}

// SendResult is handed to the client's result callback after every
// attempt, successful or not.
type SendResult struct {
	Job SendJob
	Err error
}

type Worker struct {
	ID         int
	WorkerPool chan chan SendJob
	JobChannel chan SendJob
	Logger     *slog.Logger
}

func NewWorker(id int, workerPool chan chan SendJob, logger *slog.Logger) *Worker {
	return &Worker{
		ID:         id,
		WorkerPool: workerPool,
		JobChannel: make(chan SendJob),
		Logger:     logger,
	}
}

func (w *Worker) Start(ctx context.Context, wg *sync.WaitGroup, processFunc func(SendJob)) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		for {

			w.WorkerPool <- w.JobChannel

			select {
			case job := <-w.JobChannel:
				w.Logger.Debug("worker sending message", "worker_id", w.ID, "recipient", job.Recipient)
				processFunc(job)
			case <-ctx.Done():
				w.Logger.Debug("worker shutting down", "worker_id", w.ID)
				return
			}
		}
	}()
}

type Client struct {
	bridgeURL   string
	sendTimeout time.Duration
	logger      *slog.Logger
	onResult    func(SendResult)

	jobQueue   chan SendJob
	workerPool chan chan SendJob
	maxWorkers int
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	once       sync.Once
}

type Config struct {
	BridgeURL      string
	SendTimeout    time.Duration
	MaxWorkers     int
	JobQueueSize   int
	WorkerPoolSize int
}

// NewClient starts the worker pool. onResult is invoked after every send
// attempt so the caller can record the notification log; nil is allowed.
func NewClient(config Config, onResult func(SendResult), logger *slog.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	maxWorkers := config.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 4
	}

	jobQueueSize := config.JobQueueSize
	if jobQueueSize <= 0 {
		jobQueueSize = 100
	}

	workerPoolSize := config.WorkerPoolSize
	if workerPoolSize <= 0 {
		workerPoolSize = maxWorkers
	}

	sendTimeout := config.SendTimeout
	if sendTimeout <= 0 {
		sendTimeout = 10 * time.Second
	}

	client := &Client{
		bridgeURL:   strings.TrimRight(config.BridgeURL, "/"),
		sendTimeout: sendTimeout,
		logger:      logger,
		onResult:    onResult,

		maxWorkers: maxWorkers,
		jobQueue:   make(chan SendJob, jobQueueSize),
		workerPool: make(chan chan SendJob, workerPoolSize),
		ctx:        ctx,
		cancel:     cancel,
	}

	client.startWorkerPool()

	return client
}

func (c *Client) startWorkerPool() {
	c.once.Do(func() {

		for i := 0; i < c.maxWorkers; i++ {
			worker := NewWorker(i, c.workerPool, c.logger)
			worker.Start(c.ctx, &c.wg, c.processSendJob)
		}

		go c.dispatch()

		c.logger.Info("notifier worker pool started",
			"max_workers", c.maxWorkers,
			"queue_size", cap(c.jobQueue))
	})
}

func (c *Client) dispatch() {
	c.wg.Add(1)
	defer c.wg.Done()

	for {
		select {
		case job := <-c.jobQueue:

			select {
			case jobChannel := <-c.workerPool:

				select {
				case jobChannel <- job:

				case <-c.ctx.Done():
					c.logger.Info("notifier dispatcher shutting down")
					return
				}
			case <-c.ctx.Done():
				c.logger.Info("notifier dispatcher shutting down")
				return
			}
		case <-c.ctx.Done():
			c.logger.Info("notifier dispatcher shutting down")
			return
		}
	}
}

func (c *Client) Shutdown() {
	c.logger.Info("shutting down notifier client")
	c.cancel()
	c.wg.Wait()
	c.logger.Info("notifier client shutdown complete")
}

// Send queues one outbound message. A full queue is reported to the
// caller; messages are never silently dropped.
func (c *Client) Send(recipient, text string) error {
	job := SendJob{
		Recipient: NormalizeRecipient(recipient),
		Message:   text,
	}

	select {
	case c.jobQueue <- job:
		c.logger.Info("outbound message queued",
			"recipient", job.Recipient,
			"queue_length", len(c.jobQueue))
		return nil
	default:
		c.logger.Warn("notifier job queue full, rejecting message",
			"recipient", job.Recipient,
			"queue_capacity", cap(c.jobQueue))
		return fmt.Errorf("notifier queue full")
	}
}

func (c *Client) processSendJob(job SendJob) {
	err := c.postMessage(job)
	if err != nil {
		c.logger.Error("bridge send failed",
			"error", err,
			"recipient", job.Recipient)
	} else {
		c.logger.Info("bridge send successful", "recipient", job.Recipient)
	}

	if c.onResult != nil {
		c.onResult(SendResult{Job: job, Err: err})
	}
}

func (c *Client) postMessage(job SendJob) error {
	payload := map[string]string{
		"phoneNumber": job.Recipient,
		"message":     job.Message,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal send request: %w", err)
	}

	ctx, cancel := context.WithTimeout(c.ctx, c.sendTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "POST", c.bridgeURL+"/send-message", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: c.sendTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("bridge request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bridge returned status %d", resp.StatusCode)
	}
	return nil
}

// BridgeStatus mirrors the relay's /status payload.
type BridgeStatus struct {
	IsReady        bool   `json:"isReady"`
	QRCode         string `json:"qrCode,omitempty"`
	IsInitializing bool   `json:"isInitializing"`
}

// Status proxies the relay's connection state for the admin console.
func (c *Client) Status(ctx context.Context) (*BridgeStatus, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.sendTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, "GET", c.bridgeURL+"/status", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create status request: %w", err)
	}

	client := &http.Client{Timeout: c.sendTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bridge status request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bridge returned status %d", resp.StatusCode)
	}

	var status BridgeStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to decode bridge status: %w", err)
	}
	return &status, nil
}

var nonDigits = regexp.MustCompile(`\D`)

// NormalizeRecipient strips formatting and defaults the country code to
// Bangladesh, matching what the relay expects.
func NormalizeRecipient(phone string) string {
	digits := nonDigits.ReplaceAllString(phone, "")
	if digits == "" {
		return digits
	}
	if strings.HasPrefix(digits, "880") {
		return digits
	}
	digits = strings.TrimPrefix(digits, "0")
	return "880" + digits
}
