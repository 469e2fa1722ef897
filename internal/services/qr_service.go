package services

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"log"
	"net/url"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/skip2/go-qrcode"

	"github.com/degentalk/ledger/internal/models"
)

const qrCacheTTL = 5 * time.Minute

// QRService renders the provider payment link of an order as a PNG
type QRService struct {
	redis       *redis.Client
	checkoutURL string
}

func NewQRService(redis *redis.Client, checkoutURL string) *QRService {
	return &QRService{redis: redis, checkoutURL: checkoutURL}
}

// PayURI is the link the user follows to pay for or track an order. A URI
// supplied by the provider wins over the configured checkout page.
func (s *QRService) PayURI(order *models.Order) string {
	if uri := order.Metadata.Get(models.MetaPayURI); uri != "" {
		return uri
	}
	q := url.Values{}
	q.Set("reference", order.ExternalReference)
	q.Set("amount", order.ExternalAmount)
	q.Set("currency", order.ExternalCurrency)
	q.Set("dgt", strconv.FormatInt(order.RequestedAmount, 10))
	return s.checkoutURL + "?" + q.Encode()
}

// OrderQRCode returns the PNG for order, cached in Redis when available
func (s *QRService) OrderQRCode(ctx context.Context, order *models.Order, size int) ([]byte, error) {
	if size <= 0 {
		size = 256
	}
	key := fmt.Sprintf("qr:order:%s:%d", order.ID, size)

	if s.redis != nil {
		if data, err := s.redis.Get(ctx, key).Bytes(); err == nil {
			return data, nil
		} else if err != redis.Nil {
			log.Printf("[ORDER] qr cache read failed: %v", err)
		}
	}

	qr, err := qrcode.New(s.PayURI(order), qrcode.Medium)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(size)); err != nil {
		return nil, err
	}

	if s.redis != nil {
		if err := s.redis.Set(ctx, key, buf.Bytes(), qrCacheTTL).Err(); err != nil {
			log.Printf("[ORDER] qr cache write failed: %v", err)
		}
	}
	return buf.Bytes(), nil
}
