package grpc

import (
	context "context"
	"encoding/json"
	"errors"
	"time"

	models "github.com/glkeru/loyalty/rewards/internal/models"
	services "github.com/glkeru/loyalty/rewards/internal/services"
	"go.uber.org/zap"
	grpc "google.golang.org/grpc"
	codes "google.golang.org/grpc/codes"
	status "google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ProfileServiceName = "rewards.Profile"
	GetProfileMethod   = "/rewards.Profile/GetProfile"
	GetTnxMethod       = "/rewards.Profile/GetTnx"
)

// Сервис профиля. Сообщения - google.protobuf.Struct
type ProfileServer interface {
	GetProfile(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	GetTnx(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

var ProfileServiceDesc = grpc.ServiceDesc{
	ServiceName: ProfileServiceName,
	HandlerType: (*ProfileServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetProfile", Handler: unaryHandler(GetProfileMethod, ProfileServer.GetProfile)},
		{MethodName: "GetTnx", Handler: unaryHandler(GetTnxMethod, ProfileServer.GetTnx)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "rewards/profile.proto",
}

func RegisterProfileServer(s grpc.ServiceRegistrar, srv ProfileServer) {
	s.RegisterService(&ProfileServiceDesc, srv)
}

func unaryHandler(method string, call func(ProfileServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ProfileServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ProfileServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// Клиент профиля
type ProfileClient struct {
	cc grpc.ClientConnInterface
}

func NewProfileClient(cc grpc.ClientConnInterface) *ProfileClient {
	return &ProfileClient{cc}
}

func (c *ProfileClient) GetProfile(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GetProfileMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ProfileClient) GetTnx(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GetTnxMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

type ProfileService struct {
	service *services.RewardsService
	logger  *zap.Logger
}

func NewProfileService(serv *services.RewardsService, logger *zap.Logger) *ProfileService {
	return &ProfileService{serv, logger}
}

// Профиль: {"account": "..."}
func (p *ProfileService) GetProfile(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	account := in.GetFields()["account"].GetStringValue()
	profile, err := p.service.Profile(ctx, account)
	if err != nil {
		return nil, p.status(err)
	}
	return toStruct(profile)
}

// История транзакций: {"account": "...", "datefrom": "2026-01-01", "dateto": "2026-01-31"}
func (p *ProfileService) GetTnx(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	fields := in.GetFields()
	from, err := time.Parse(time.DateOnly, fields["datefrom"].GetStringValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "datefrom is not a date")
	}
	to, err := time.Parse(time.DateOnly, fields["dateto"].GetStringValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "dateto is not a date")
	}
	tnxs, err := p.service.Transactions(ctx, fields["account"].GetStringValue(), from, to.Add(24*time.Hour-time.Nanosecond))
	if err != nil {
		return nil, p.status(err)
	}
	return toStruct(map[string]any{"tnx": tnxs})
}

func (p *ProfileService) status(err error) error {
	switch {
	case errors.Is(err, models.ErrAccountNotFound), errors.Is(err, models.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, models.ErrInvalidAccount):
		return status.Error(codes.InvalidArgument, err.Error())
	}
	p.logger.Error("profile", zap.Error(err))
	return status.Error(codes.Internal, err.Error())
}

// структура через JSON, чтобы имена полей совпадали с HTTP API
func toStruct(v any) (*structpb.Struct, error) {
	j, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	m := map[string]any{}
	if err = json.Unmarshal(j, &m); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return s, nil
}
