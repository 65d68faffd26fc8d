package main

import (
	"encoding/json"
	"os"

	"github.com/example/order-placement-service/internal/adapter/natsstan"
	"github.com/example/order-placement-service/internal/usecase"
	"go.uber.org/zap"
)

// publisher читает запрос на заказ из stdin и кладёт его в очередь запросов.
func main() {
	log, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	clusterID := getenv("STAN_CLUSTER_ID", "test-cluster")
	clientID := getenv("STAN_PUB_ID", "order-publisher")
	natsURL := getenv("NATS_URL", "nats://localhost:4222")
	subject := getenv("STAN_REQUEST_SUBJECT", "orders.requests")

	var req usecase.OrderRequest
	dec := json.NewDecoder(os.Stdin)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		log.Fatal("read order request from stdin", zap.Error(err))
	}
	if req.CustomerID == "" || len(req.Products) == 0 {
		log.Fatal("order request needs customer_id and products")
	}
	b, err := json.Marshal(req)
	if err != nil {
		log.Fatal("marshal", zap.Error(err))
	}

	sc, err := natsstan.Connect(clusterID, clientID, natsURL)
	if err != nil {
		log.Fatal("connect", zap.Error(err))
	}
	defer sc.Close()

	if err := sc.Publish(subject, b); err != nil {
		log.Fatal("publish", zap.Error(err))
	}
	log.Info("published order request",
		zap.String("subject", subject),
		zap.String("customer_id", req.CustomerID),
		zap.Int("lines", len(req.Products)),
	)
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
