package grpc

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/DRSN-tech/embedding-pipeline/internal/domain"
	"github.com/DRSN-tech/embedding-pipeline/internal/usecase"
	"github.com/DRSN-tech/embedding-pipeline/pkg/e"
	"github.com/DRSN-tech/embedding-pipeline/pkg/logger"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	RunServiceName   = "pipeline.v1.RunService"
	GetRunFullMethod = "/" + RunServiceName + "/GetRun"
)

// RunServiceServer отдаёт сводки запусков из журнала.
// Запрос — идентификатор запуска (StringValue), ответ — сводка в виде Struct с теми же полями, что и в HTTP API.
type RunServiceServer interface {
	GetRun(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error)
}

type RunService struct {
	journal usecase.RunJournalUC
	logger  logger.Logger
}

func NewRunService(journal usecase.RunJournalUC, logger logger.Logger) *RunService {
	return &RunService{journal: journal, logger: logger}
}

func (g *RunService) GetRun(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	const op = "grpc.GetRun"

	runID := strings.TrimSpace(req.GetValue())
	if runID == "" {
		return nil, GRPCErrorResponse(e.Wrap(op, e.ErrStatusBadRequest))
	}

	report, err := g.journal.GetRun(ctx, runID)
	if err != nil {
		g.logger.Errorf(e.Wrap(op, err), "%s", op)
		return nil, GRPCErrorResponse(e.Wrap(op, err))
	}

	res, err := toGRPCReport(report)
	if err != nil {
		g.logger.Errorf(e.Wrap(op, err), "%s: failed to encode report", op)
		return nil, GRPCErrorResponse(e.Wrap(op, err))
	}

	return res, nil
}

func toGRPCReport(report *domain.RunReport) (*structpb.Struct, error) {
	data, err := json.Marshal(report)
	if err != nil {
		return nil, err
	}

	res := &structpb.Struct{}
	if err := res.UnmarshalJSON(data); err != nil {
		return nil, err
	}

	return res, nil
}

func RegisterRunServiceServer(s grpc.ServiceRegistrar, srv RunServiceServer) {
	s.RegisterService(&runServiceDesc, srv)
}

func getRunHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RunServiceServer).GetRun(ctx, in)
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: GetRunFullMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RunServiceServer).GetRun(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

var runServiceDesc = grpc.ServiceDesc{
	ServiceName: RunServiceName,
	HandlerType: (*RunServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetRun",
			Handler:    getRunHandler,
		},
	},
	Streams: []grpc.StreamDesc{},
}
