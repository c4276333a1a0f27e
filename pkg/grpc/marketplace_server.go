package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/evansochadeka/BenFarm/pkg/apperr"
	"github.com/evansochadeka/BenFarm/pkg/catalog"
	"github.com/evansochadeka/BenFarm/pkg/config"
	"github.com/evansochadeka/BenFarm/pkg/models"
	"github.com/evansochadeka/BenFarm/pkg/orders"
)

const ServiceName = "benfarm.v1.Marketplace"

const (
	methodGetOrder     = "/" + ServiceName + "/GetOrder"
	methodListProducts = "/" + ServiceName + "/ListProducts"
)

// Authenticator resolves a bearer token to a user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

type userKey struct{}

// MarketplaceServer is the read-only gRPC view of orders and products.
// Requests and responses are google.protobuf.Struct values.
type MarketplaceServer struct {
	catalog *catalog.Service
	orders  *orders.Service
	auth    Authenticator
	config  *config.ServerConfig
	logger  *zap.Logger
	server  *grpc.Server
	health  *health.Server
}

type marketplaceService interface {
	GetOrder(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListProducts(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var marketplaceServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*marketplaceService)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetOrder", Handler: unaryHandler(methodGetOrder, marketplaceService.GetOrder)},
		{MethodName: "ListProducts", Handler: unaryHandler(methodListProducts, marketplaceService.ListProducts)},
	},
	Streams: []grpc.StreamDesc{},
}

func unaryHandler(fullMethod string, call func(marketplaceService, context.Context, *structpb.Struct) (*structpb.Struct, error)) func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		svc := srv.(marketplaceService)
		if interceptor == nil {
			return call(svc, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(svc, ctx, req.(*structpb.Struct))
		})
	}
}

func NewMarketplaceServer(cfg *config.ServerConfig, cat *catalog.Service, ord *orders.Service, authn Authenticator, logger *zap.Logger) *MarketplaceServer {
	s := &MarketplaceServer{
		catalog: cat,
		orders:  ord,
		auth:    authn,
		config:  cfg,
		logger:  logger.Named("grpc"),
		health:  health.NewServer(),
	}
	s.server = grpc.NewServer(grpc.ChainUnaryInterceptor(s.logUnary, s.authUnary))
	s.server.RegisterService(&marketplaceServiceDesc, s)
	healthpb.RegisterHealthServer(s.server, s.health)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	reflection.Register(s.server)
	return s
}

func (s *MarketplaceServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.logger.Info("Marketplace gRPC service started", zap.String("address", addr))
	return s.Serve(lis)
}

func (s *MarketplaceServer) Serve(lis net.Listener) error {
	return s.server.Serve(lis)
}

func (s *MarketplaceServer) Stop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}

func (s *MarketplaceServer) logUnary(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	resp, err := handler(ctx, req)
	if err != nil {
		s.logger.Warn("gRPC call failed", zap.String("method", info.FullMethod), zap.Error(err))
	}
	return resp, err
}

// authUnary attaches the caller to ctx when a bearer token is present.
func (s *MarketplaceServer) authUnary(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	for _, v := range md.Get("authorization") {
		token := strings.TrimSpace(strings.TrimPrefix(v, "Bearer "))
		if token == "" || s.auth == nil {
			continue
		}
		user, err := s.auth.Authenticate(ctx, token)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		}
		ctx = context.WithValue(ctx, userKey{}, user)
		break
	}
	return handler(ctx, req)
}

func caller(ctx context.Context) *models.User {
	u, _ := ctx.Value(userKey{}).(*models.User)
	return u
}

func (s *MarketplaceServer) GetOrder(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	viewer := caller(ctx)
	if viewer == nil {
		return nil, status.Error(codes.Unauthenticated, "authentication required")
	}
	fields := req.GetFields()
	var id uint
	if ref := fields["reference"].GetStringValue(); ref != "" {
		o, err := s.orders.GetByReference(ctx, ref)
		if err != nil {
			return nil, toStatus(err)
		}
		id = o.ID
	} else {
		n := fields["id"].GetNumberValue()
		if n <= 0 {
			return nil, status.Error(codes.InvalidArgument, "id or reference is required")
		}
		id = uint(n)
	}
	order, err := s.orders.Get(ctx, viewer, id)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(order)
}

func (s *MarketplaceServer) ListProducts(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()
	products, total, err := s.catalog.ListPublic(ctx, catalog.Filter{
		Category: fields["category"].GetStringValue(),
		Search:   fields["search"].GetStringValue(),
		SellerID: uint(fields["seller_id"].GetNumberValue()),
		Page:     int(fields["page"].GetNumberValue()),
		PerPage:  int(fields["per_page"].GetNumberValue()),
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(map[string]interface{}{"products": products, "total": total})
}

func toStruct(v interface{}) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to encode response")
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, status.Error(codes.Internal, "failed to encode response")
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to encode response")
	}
	return out, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, apperr.ErrForbidden):
		return status.Error(codes.PermissionDenied, "forbidden")
	case errors.Is(err, apperr.ErrUnauthorized):
		return status.Error(codes.Unauthenticated, "unauthorized")
	case errors.Is(err, apperr.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, apperr.ErrConflict):
		return status.Error(codes.Aborted, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}
