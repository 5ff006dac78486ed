package ml_service

import (
	"context"
	"fmt"

	"github.com/DRSN-tech/embedding-pipeline/internal/domain"
	"github.com/DRSN-tech/embedding-pipeline/internal/usecase"
	"github.com/DRSN-tech/embedding-pipeline/pkg/e"
	"github.com/DRSN-tech/embedding-pipeline/pkg/logger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// EmbedMethod — полное имя unary-метода ML-сервиса. Запрос — BytesValue с байтами изображения,
// ответ — Struct с полями vector (список чисел) и model_version.
const EmbedMethod = "/ml.v1.EmbeddingService/Embed"

// Ключи gRPC-метаданных, в которых передаются метаданные изображения.
const (
	mdOrganisationID = "x-organisation-id"
	mdTimestamp      = "x-timestamp"
	mdFileName       = "x-file-name"
	mdImagePath      = "x-image-path"
	mdMimeType       = "x-mime-type"
)

// MLService клиент для взаимодействия с внешним ML-сервисом
type MLService struct {
	conn   grpc.ClientConnInterface
	logger logger.Logger
}

func NewMLService(conn grpc.ClientConnInterface, logger logger.Logger) *MLService {
	return &MLService{
		conn:   conn,
		logger: logger,
	}
}

// Embed отправляет одно изображение на векторизацию. Таймауты и повторы задаёт вызывающая сторона через ctx.
func (m *MLService) Embed(ctx context.Context, req *usecase.EmbedReq) (*usecase.EmbedRes, error) {
	const op = "MLService.Embed"

	ctx = metadata.NewOutgoingContext(ctx, outgoingMetadata(req))

	out := &structpb.Struct{}
	if err := m.conn.Invoke(ctx, EmbedMethod, wrapperspb.Bytes(req.Data), out); err != nil {
		return nil, e.Wrap(op, err)
	}

	res, err := parseReply(out)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	m.logger.Debugf("%s: received %d-dim vector for %s", op, len(res.Vector), req.Metadata.String(domain.MetaFileName))
	return res, nil
}

func outgoingMetadata(req *usecase.EmbedReq) metadata.MD {
	md := metadata.Pairs(
		mdOrganisationID, req.Metadata.String(domain.MetaOrganisationID),
		mdTimestamp, req.Metadata.String(domain.MetaTimestamp),
		mdFileName, req.Metadata.String(domain.MetaFileName),
	)
	if path := req.Metadata.String(domain.MetaImagePath); path != "" {
		md.Set(mdImagePath, path)
	}
	if req.MimeType != "" {
		md.Set(mdMimeType, req.MimeType)
	}

	return md
}

// parseReply разбирает ответ ML-сервиса. Пустой вектор не считается ошибкой разбора.
func parseReply(out *structpb.Struct) (*usecase.EmbedRes, error) {
	fields := out.GetFields()

	var vector []float32
	if v, ok := fields["vector"]; ok {
		list := v.GetListValue()
		if list == nil {
			return nil, fmt.Errorf("%w: vector is not a list", e.ErrInvalidEmbedderReply)
		}

		vector = make([]float32, 0, len(list.GetValues()))
		for i, item := range list.GetValues() {
			num, ok := item.GetKind().(*structpb.Value_NumberValue)
			if !ok {
				return nil, fmt.Errorf("%w: vector[%d] is not a number", e.ErrInvalidEmbedderReply, i)
			}
			vector = append(vector, float32(num.NumberValue))
		}
	}

	return usecase.NewEmbedRes(vector, fields["model_version"].GetStringValue()), nil
}
