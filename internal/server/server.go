// Package server implements the gRPC ArxmlService: clients open model
// sessions, load files into them and query the resulting element tree
package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/nainya/arxmlstore/internal/logger"
	"github.com/nainya/arxmlstore/internal/metrics"
	"github.com/nainya/arxmlstore/pkg/arxml"
	"github.com/nainya/arxmlstore/pkg/version"
)

// Options configures a Server. DefaultVersion applies to CreateFile
// requests that name no version.
type Options struct {
	MaxModels      int
	Parse          arxml.ParseOptions
	DefaultVersion version.Version
	Logger         *logger.Logger
	Metrics        *metrics.Metrics
}

// session is one open model. The core model is not safe for concurrent
// use, so every request holds mu while it touches the model.
type session struct {
	mu      sync.Mutex
	model   *arxml.Model
	created time.Time
}

// Server implements ArxmlServiceServer
type Server struct {
	sessions *lru.Cache[string, *session]
	opts     Options
	log      *logger.Logger
	metrics  *metrics.Metrics

	startTime time.Time
}

var _ ArxmlServiceServer = (*Server)(nil)

// NewServer creates a server holding at most opts.MaxModels sessions; the
// least recently used session is closed when the limit is reached
func NewServer(opts Options) (*Server, error) {
	if opts.MaxModels <= 0 {
		opts.MaxModels = 16
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewMetrics(prometheus.NewRegistry())
	}
	s := &Server{
		opts:      opts,
		log:       opts.Logger,
		metrics:   opts.Metrics,
		startTime: time.Now(),
	}
	cache, err := lru.NewWithEvict[string, *session](opts.MaxModels, s.onEvict)
	if err != nil {
		return nil, fmt.Errorf("failed to create session cache: %w", err)
	}
	s.sessions = cache
	return s, nil
}

func (s *Server) onEvict(id string, sess *session) {
	s.metrics.ModelsOpen.Dec()
	s.log.Debug("model session closed").
		Str("model_id", id).
		Dur("age", time.Since(sess.created)).
		Send()
}

// Close drops every open session
func (s *Server) Close() {
	s.sessions.Purge()
}

// ========== Helpers ==========

// toStatus maps model errors onto gRPC status codes
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	var code codes.Code
	switch arxml.ErrorKind(err) {
	case arxml.KindParse, arxml.KindIncorrectContentType, arxml.KindInvalidFile,
		arxml.KindInvalidPosition, arxml.KindInvalidReference, arxml.KindFile:
		code = codes.InvalidArgument
	case arxml.KindSchemaViolation, arxml.KindDuplicateName, arxml.KindCycle, arxml.KindNotIdentifiable:
		code = codes.FailedPrecondition
	case arxml.KindReferenceResolution, arxml.KindElementRemoved:
		code = codes.NotFound
	default:
		code = codes.Internal
	}
	return status.Error(code, err.Error())
}

func stringField(req *structpb.Struct, name string) string {
	return req.GetFields()[name].GetStringValue()
}

func boolField(req *structpb.Struct, name string) bool {
	return req.GetFields()[name].GetBoolValue()
}

func requireField(req *structpb.Struct, name string) (string, error) {
	v := stringField(req, name)
	if v == "" {
		return "", status.Errorf(codes.InvalidArgument, "%s is required", name)
	}
	return v, nil
}

func stringList(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func respond(fields map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	return out, nil
}

// withModel runs fn on the session named by the model_id field
func (s *Server) withModel(req *structpb.Struct, fn func(m *arxml.Model) (map[string]any, error)) (*structpb.Struct, error) {
	id, err := requireField(req, "model_id")
	if err != nil {
		return nil, err
	}
	sess, ok := s.sessions.Get(id)
	if !ok {
		return nil, status.Errorf(codes.NotFound, "model %s not found", id)
	}
	sess.mu.Lock()
	fields, err := fn(sess.model)
	sess.mu.Unlock()
	if err != nil {
		return nil, toStatus(err)
	}
	return respond(fields)
}

// timed records a model operation in metrics and the log
func (s *Server) timed(op string, elements func() int, fn func() error) error {
	start := time.Now()
	err := fn()
	duration := time.Since(start)
	s.metrics.RecordModelOperation(op, err, duration)
	s.log.ModelLogger(op).LogModelOperation(op, duration, elements(), err)
	return err
}

func (s *Server) publishStats(m *arxml.Model) {
	st := m.Stats()
	s.metrics.UpdateModelStats(st.Files, st.Elements, st.Identifiables)
}

// ========== Sessions ==========

func (s *Server) OpenModel(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id := uuid.NewString()
	model := arxml.NewModel(arxml.WithLogger(*s.log.ModelLogger("model").GetZerolog()))
	s.sessions.Add(id, &session{model: model, created: time.Now()})
	s.metrics.ModelsOpen.Inc()
	return respond(map[string]any{"model_id": id})
}

func (s *Server) CloseModel(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := requireField(req, "model_id")
	if err != nil {
		return nil, err
	}
	if !s.sessions.Remove(id) {
		return nil, status.Errorf(codes.NotFound, "model %s not found", id)
	}
	return respond(map[string]any{"closed": true})
}

// ========== Files ==========

func (s *Server) CreateFile(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	filename, err := requireField(req, "filename")
	if err != nil {
		return nil, err
	}
	v := s.opts.DefaultVersion
	if name := stringField(req, "version"); name != "" {
		if v, err = version.Parse(name); err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
	}
	return s.withModel(req, func(m *arxml.Model) (map[string]any, error) {
		f, err := m.CreateFile(filename, v)
		if err != nil {
			return nil, err
		}
		return map[string]any{"filename": f.Filename(), "version": f.Version().Name()}, nil
	})
}

func (s *Server) LoadBuffer(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	filename, err := requireField(req, "filename")
	if err != nil {
		return nil, err
	}
	content := stringField(req, "content")
	opts := s.opts.Parse
	if boolField(req, "strict") {
		opts.Strict = true
	}
	return s.withModel(req, func(m *arxml.Model) (map[string]any, error) {
		var f *arxml.File
		var warnings []arxml.Warning
		err := s.timed("load", func() int { return m.Stats().Elements }, func() error {
			var err error
			f, warnings, err = m.LoadBufferWithOptions([]byte(content), filename, opts)
			return err
		})
		if err != nil {
			return nil, err
		}
		texts := make([]string, len(warnings))
		for i, w := range warnings {
			s.metrics.RecordParseWarning(w.Kind.String())
			texts[i] = w.String()
		}
		s.publishStats(m)
		return map[string]any{
			"filename": f.Filename(),
			"version":  f.Version().Name(),
			"warnings": stringList(texts),
		}, nil
	})
}

func (s *Server) SerializeFiles(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.withModel(req, func(m *arxml.Model) (map[string]any, error) {
		files := make(map[string]any)
		err := s.timed("serialize", func() int { return len(files) }, func() error {
			for name, text := range m.SerializeFiles() {
				files[name] = text
			}
			return nil
		})
		return map[string]any{"files": files}, err
	})
}

// ========== Elements ==========

func (s *Server) GetElement(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	path, err := requireField(req, "path")
	if err != nil {
		return nil, err
	}
	return s.withModel(req, func(m *arxml.Model) (map[string]any, error) {
		e, ok := m.GetElementByPath(path)
		if !ok {
			return nil, status.Errorf(codes.NotFound, "no element at %s", path)
		}
		return describeElement(e), nil
	})
}

func describeElement(e arxml.Element) map[string]any {
	out := map[string]any{
		"element_name": e.ElementName(),
		"xml_path":     e.XMLPath(),
	}
	if path, err := e.Path(); err == nil {
		out["path"] = path
	}
	if name, ok := e.ItemName(); ok {
		out["item_name"] = name
	}
	children := e.SubElements()
	names := make([]string, len(children))
	for i, c := range children {
		names[i] = c.ElementName()
		if item, ok := c.ItemName(); ok {
			names[i] += " " + item
		}
	}
	out["sub_elements"] = stringList(names)
	attrs := make(map[string]any)
	for _, a := range e.Attributes() {
		attrs[a.Name] = a.Value.Format()
	}
	out["attributes"] = attrs
	if text, ok := e.CharacterData(); ok {
		out["character_data"] = text.Format()
	}
	if e.IsReference() {
		if target, err := e.GetReferenceTarget(); err == nil {
			out["reference_target"] = target.XMLPath()
		}
	}
	return out
}

func (s *Server) IdentifiableElements(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.withModel(req, func(m *arxml.Model) (map[string]any, error) {
		return map[string]any{"paths": stringList(m.IdentifiableElements())}, nil
	})
}

func (s *Server) CheckReferences(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.withModel(req, func(m *arxml.Model) (map[string]any, error) {
		var dangling []any
		err := s.timed("check_references", func() int { return len(dangling) }, func() error {
			for _, ref := range m.CheckReferences() {
				target := ""
				if text, ok := ref.CharacterData(); ok {
					target = text.Format()
				}
				dangling = append(dangling, map[string]any{"xml_path": ref.XMLPath(), "target": target})
			}
			return nil
		})
		s.metrics.DanglingReferencesTotal.Add(float64(len(dangling)))
		return map[string]any{"dangling": dangling}, err
	})
}

func (s *Server) CheckVersionCompatibility(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	name, err := requireField(req, "target")
	if err != nil {
		return nil, err
	}
	target, err := version.Parse(name)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	filename := stringField(req, "filename")
	return s.withModel(req, func(m *arxml.Model) (map[string]any, error) {
		var errs []arxml.CompatibilityError
		var mask version.Mask
		err := s.timed("check_compat", func() int { return len(errs) }, func() error {
			if filename == "" {
				errs, mask = m.CheckVersionCompatibility(target)
				return nil
			}
			f, ok := m.FileByName(filename)
			if !ok {
				return status.Errorf(codes.NotFound, "file %s not found", filename)
			}
			errs, mask = f.CheckVersionCompatibility(target)
			return nil
		})
		if err != nil {
			return nil, err
		}
		items := make([]any, len(errs))
		for i, ce := range errs {
			s.metrics.CompatibilityErrorsTotal.WithLabelValues(ce.Kind.String()).Inc()
			items[i] = map[string]any{
				"kind":      ce.Kind.String(),
				"xml_path":  ce.Element.XMLPath(),
				"attribute": ce.Attribute,
				"value":     ce.Value,
				"versions":  ce.Versions.String(),
				"message":   ce.Error(),
			}
		}
		return map[string]any{
			"errors":              items,
			"compatible":          len(errs) == 0,
			"compatible_versions": mask.String(),
		}, nil
	})
}

func (s *Server) Sort(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.withModel(req, func(m *arxml.Model) (map[string]any, error) {
		m.Sort()
		return map[string]any{"sorted": true}, nil
	})
}

// ========== Health & Status ==========

func (s *Server) Stats(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if stringField(req, "model_id") == "" {
		return respond(map[string]any{
			"models_open":    s.sessions.Len(),
			"uptime_seconds": int64(time.Since(s.startTime).Seconds()),
		})
	}
	return s.withModel(req, func(m *arxml.Model) (map[string]any, error) {
		st := m.Stats()
		s.publishStats(m)
		return map[string]any{
			"files":         st.Files,
			"elements":      st.Elements,
			"identifiables": st.Identifiables,
			"references":    st.References,
		}, nil
	})
}
