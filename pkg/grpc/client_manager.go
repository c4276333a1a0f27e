package grpc

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/evansochadeka/BenFarm/pkg/catalog"
	"github.com/evansochadeka/BenFarm/pkg/config"
	"github.com/evansochadeka/BenFarm/pkg/discovery"
)

// ClientManager holds a connection to the marketplace service.
type ClientManager struct {
	config    *config.ServerConfig
	discovery *discovery.ServiceDiscovery
	logger    *zap.Logger
	conn      *grpc.ClientConn
}

// NewClientManager creates a client manager. disc may be nil.
func NewClientManager(cfg *config.ServerConfig, logger *zap.Logger, disc *discovery.ServiceDiscovery) *ClientManager {
	return &ClientManager{
		config:    cfg,
		discovery: disc,
		logger:    logger.Named("grpc-client"),
	}
}

// Connect resolves the service through etcd when available and falls back to the configured address.
func (m *ClientManager) Connect(ctx context.Context) error {
	target := fmt.Sprintf("%s:%d", m.config.Host, m.config.Port)
	if m.discovery != nil {
		dctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()

		instances, err := m.discovery.Discover(dctx, m.config.Name)
		if err == nil && len(instances) > 0 {
			target = instances[0].Addr()
			m.logger.Info("Discovered marketplace service", zap.String("address", target))
		} else {
			m.logger.Info("Using default address for marketplace service", zap.String("address", target))
		}
	}
	return m.ConnectTo(target)
}

func (m *ClientManager) ConnectTo(target string, opts ...grpc.DialOption) error {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to marketplace service: %w", err)
	}
	m.conn = conn
	return nil
}

func (m *ClientManager) invoke(ctx context.Context, method, token string, req *structpb.Struct) (*structpb.Struct, error) {
	if m.conn == nil {
		return nil, fmt.Errorf("marketplace client is not connected")
	}
	if token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
	}
	out := new(structpb.Struct)
	if err := m.conn.Invoke(ctx, method, req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *ClientManager) GetOrder(ctx context.Context, token string, id uint) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(map[string]interface{}{"id": float64(id)})
	if err != nil {
		return nil, err
	}
	return m.invoke(ctx, methodGetOrder, token, req)
}

func (m *ClientManager) ListProducts(ctx context.Context, f catalog.Filter) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(map[string]interface{}{
		"category":  f.Category,
		"search":    f.Search,
		"seller_id": float64(f.SellerID),
		"page":      float64(f.Page),
		"per_page":  float64(f.PerPage),
	})
	if err != nil {
		return nil, err
	}
	return m.invoke(ctx, methodListProducts, "", req)
}

func (m *ClientManager) Close() error {
	if m.conn == nil {
		return nil
	}
	if err := m.conn.Close(); err != nil {
		return fmt.Errorf("marketplace connection close error: %w", err)
	}
	return nil
}
