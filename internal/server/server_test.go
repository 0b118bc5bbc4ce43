// Integration tests for the ArxmlService gRPC server
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/nainya/arxmlstore/internal/logger"
	"github.com/nainya/arxmlstore/internal/metrics"
	"github.com/nainya/arxmlstore/pkg/version"
)

const bufSize = 1024 * 1024

const header = `<?xml version="1.0" encoding="utf-8"?>
<AUTOSAR xsi:schemaLocation="http://autosar.org/schema/r4.0 AUTOSAR_00050.xsd" xmlns="http://autosar.org/schema/r4.0" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">
`

func packageFile(pkg, body string) string {
	return header + `  <AR-PACKAGES>
    <AR-PACKAGE>
      <SHORT-NAME>` + pkg + `</SHORT-NAME>
      <ELEMENTS>
` + body + `      </ELEMENTS>
    </AR-PACKAGE>
  </AR-PACKAGES>
</AUTOSAR>
`
}

const frameBody = `        <I-SIGNAL-I-PDU>
          <SHORT-NAME>Pdu</SHORT-NAME>
          <LENGTH>8</LENGTH>
        </I-SIGNAL-I-PDU>
        <CAN-FRAME>
          <SHORT-NAME>Frame</SHORT-NAME>
          <PDU-TO-FRAME-MAPPINGS>
            <PDU-TO-FRAME-MAPPING>
              <SHORT-NAME>Mapping</SHORT-NAME>
              <PDU-REF DEST="I-SIGNAL-I-PDU">/Pkg/Pdu</PDU-REF>
            </PDU-TO-FRAME-MAPPING>
            <PDU-TO-FRAME-MAPPING>
              <SHORT-NAME>Broken</SHORT-NAME>
              <PDU-REF DEST="I-SIGNAL-I-PDU">/Pkg/Missing</PDU-REF>
            </PDU-TO-FRAME-MAPPING>
          </PDU-TO-FRAME-MAPPINGS>
        </CAN-FRAME>
`

const adaptiveBody = `        <ADAPTIVE-APPLICATION-SW-COMPONENT-TYPE>
          <SHORT-NAME>Swc</SHORT-NAME>
        </ADAPTIVE-APPLICATION-SW-COMPONENT-TYPE>
`

type testEnv struct {
	server  *Server
	client  *Client
	metrics *metrics.Metrics
	reg     *prometheus.Registry
}

func setupTestServer(t *testing.T, maxModels int) *testEnv {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	log := logger.Nop()

	server, err := NewServer(Options{
		MaxModels:      maxModels,
		DefaultVersion: version.AUTOSAR_00050,
		Logger:         log,
		Metrics:        m,
	})
	require.NoError(t, err)

	lis := bufconn.Listen(bufSize)
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(GrpcMetricsInterceptor(m, log)))
	RegisterArxmlServiceServer(grpcServer, server)
	go func() {
		// Serve returns once the server is stopped during cleanup
		_ = grpcServer.Serve(lis)
	}()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) {
			return lis.Dial()
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		grpcServer.Stop()
		lis.Close()
		server.Close()
	})
	return &testEnv{server: server, client: NewClient(conn), metrics: m, reg: reg}
}

func (e *testEnv) call(t *testing.T, method string, fields map[string]any) (*structpb.Struct, error) {
	t.Helper()
	return e.client.Call(context.Background(), method, fields)
}

func (e *testEnv) open(t *testing.T) string {
	t.Helper()
	resp, err := e.call(t, MethodOpenModel, nil)
	require.NoError(t, err)
	id := resp.GetFields()["model_id"].GetStringValue()
	require.NotEmpty(t, id)
	return id
}

func (e *testEnv) load(t *testing.T, id, filename, content string) (*structpb.Struct, error) {
	t.Helper()
	return e.call(t, MethodLoadBuffer, map[string]any{
		"model_id": id,
		"filename": filename,
		"content":  content,
	})
}

func requireCode(t *testing.T, err error, code codes.Code) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, status.Code(err), "error: %v", err)
}

func stringsOf(v *structpb.Value) []string {
	var out []string
	for _, item := range v.GetListValue().GetValues() {
		out = append(out, item.GetStringValue())
	}
	return out
}

func TestLoadAndQuery(t *testing.T) {
	env := setupTestServer(t, 4)
	id := env.open(t)

	resp, err := env.load(t, id, "frames.arxml", packageFile("Pkg", frameBody))
	require.NoError(t, err)
	assert.Equal(t, "AUTOSAR_00050", resp.GetFields()["version"].GetStringValue())
	assert.Empty(t, stringsOf(resp.GetFields()["warnings"]))

	resp, err = env.call(t, MethodIdentifiableElements, map[string]any{"model_id": id})
	require.NoError(t, err)
	assert.Equal(t, []string{"/Pkg", "/Pkg/Frame", "/Pkg/Frame/Broken", "/Pkg/Frame/Mapping", "/Pkg/Pdu"},
		stringsOf(resp.GetFields()["paths"]))

	resp, err = env.call(t, MethodGetElement, map[string]any{"model_id": id, "path": "/Pkg/Frame/Mapping"})
	require.NoError(t, err)
	fields := resp.GetFields()
	assert.Equal(t, "PDU-TO-FRAME-MAPPING", fields["element_name"].GetStringValue())
	assert.Equal(t, "Mapping", fields["item_name"].GetStringValue())
	assert.Equal(t, []string{"SHORT-NAME", "PDU-REF"}, stringsOf(fields["sub_elements"]))

	_, err = env.call(t, MethodGetElement, map[string]any{"model_id": id, "path": "/Pkg/Nothing"})
	requireCode(t, err, codes.NotFound)

	resp, err = env.call(t, MethodStats, map[string]any{"model_id": id})
	require.NoError(t, err)
	assert.Equal(t, 1.0, resp.GetFields()["files"].GetNumberValue())
	assert.Equal(t, 5.0, resp.GetFields()["identifiables"].GetNumberValue())
	assert.Equal(t, 2.0, resp.GetFields()["references"].GetNumberValue())

	resp, err = env.call(t, MethodSerializeFiles, map[string]any{"model_id": id})
	require.NoError(t, err)
	files := resp.GetFields()["files"].GetStructValue().GetFields()
	assert.Equal(t, packageFile("Pkg", frameBody), files["frames.arxml"].GetStringValue())
}

func TestCheckReferences(t *testing.T) {
	env := setupTestServer(t, 4)
	id := env.open(t)
	_, err := env.load(t, id, "frames.arxml", packageFile("Pkg", frameBody))
	require.NoError(t, err)

	resp, err := env.call(t, MethodCheckReferences, map[string]any{"model_id": id})
	require.NoError(t, err)
	dangling := resp.GetFields()["dangling"].GetListValue().GetValues()
	require.Len(t, dangling, 1)
	assert.Equal(t, "/Pkg/Missing", dangling[0].GetStructValue().GetFields()["target"].GetStringValue())
}

func TestCheckVersionCompatibility(t *testing.T) {
	env := setupTestServer(t, 4)
	id := env.open(t)
	_, err := env.load(t, id, "swc.arxml", packageFile("Pkg", adaptiveBody))
	require.NoError(t, err)

	resp, err := env.call(t, MethodCheckVersionCompatibility, map[string]any{"model_id": id, "target": "AUTOSAR_4_3_0"})
	require.NoError(t, err)
	fields := resp.GetFields()
	assert.False(t, fields["compatible"].GetBoolValue())
	items := fields["errors"].GetListValue().GetValues()
	require.Len(t, items, 1)
	assert.Equal(t, "IncompatibleElement", items[0].GetStructValue().GetFields()["kind"].GetStringValue())

	resp, err = env.call(t, MethodCheckVersionCompatibility, map[string]any{
		"model_id": id,
		"target":   "AUTOSAR_00050",
		"filename": "swc.arxml",
	})
	require.NoError(t, err)
	assert.True(t, resp.GetFields()["compatible"].GetBoolValue())

	_, err = env.call(t, MethodCheckVersionCompatibility, map[string]any{"model_id": id, "target": "AUTOSAR_1"})
	requireCode(t, err, codes.InvalidArgument)
	_, err = env.call(t, MethodCheckVersionCompatibility, map[string]any{
		"model_id": id,
		"target":   "AUTOSAR_00050",
		"filename": "other.arxml",
	})
	requireCode(t, err, codes.NotFound)
}

func TestErrorCodes(t *testing.T) {
	env := setupTestServer(t, 4)
	id := env.open(t)

	_, err := env.load(t, id, "bad.arxml", "not xml at all")
	requireCode(t, err, codes.InvalidArgument)

	_, err = env.load(t, id, "a.arxml", packageFile("Pkg", frameBody))
	require.NoError(t, err)
	_, err = env.load(t, id, "a.arxml", packageFile("Pkg", frameBody))
	requireCode(t, err, codes.InvalidArgument)

	// the same signal with different content
	changed := strings.Replace(frameBody, "<LENGTH>8</LENGTH>", "<LENGTH>16</LENGTH>", 1)
	_, err = env.load(t, id, "b.arxml", packageFile("Pkg", changed))
	requireCode(t, err, codes.FailedPrecondition)

	_, err = env.call(t, MethodStats, map[string]any{"model_id": "unknown"})
	requireCode(t, err, codes.NotFound)
	_, err = env.call(t, MethodSort, map[string]any{})
	requireCode(t, err, codes.InvalidArgument)
	_, err = env.call(t, MethodCreateFile, map[string]any{"model_id": id, "filename": "c.arxml", "version": "AUTOSAR_1"})
	requireCode(t, err, codes.InvalidArgument)
}

func TestCreateFileAndSort(t *testing.T) {
	env := setupTestServer(t, 4)
	id := env.open(t)

	resp, err := env.call(t, MethodCreateFile, map[string]any{"model_id": id, "filename": "empty.arxml"})
	require.NoError(t, err)
	assert.Equal(t, "AUTOSAR_00050", resp.GetFields()["version"].GetStringValue())

	resp, err = env.call(t, MethodSort, map[string]any{"model_id": id})
	require.NoError(t, err)
	assert.True(t, resp.GetFields()["sorted"].GetBoolValue())
}

func TestSessionLifecycle(t *testing.T) {
	env := setupTestServer(t, 2)
	first := env.open(t)
	second := env.open(t)

	_, err := env.call(t, MethodCloseModel, map[string]any{"model_id": second})
	require.NoError(t, err)
	_, err = env.call(t, MethodCloseModel, map[string]any{"model_id": second})
	requireCode(t, err, codes.NotFound)

	// the least recently used session is evicted once the cache is full
	env.open(t)
	env.open(t)
	_, err = env.call(t, MethodStats, map[string]any{"model_id": first})
	requireCode(t, err, codes.NotFound)

	resp, err := env.call(t, MethodStats, nil)
	require.NoError(t, err)
	assert.Equal(t, 2.0, resp.GetFields()["models_open"].GetNumberValue())
}

func TestObservabilityEndpoints(t *testing.T) {
	env := setupTestServer(t, 4)
	env.open(t)

	obs := NewObservabilityServer(0, env.reg, logger.Nop())
	ts := httptest.NewServer(obs.Handler())
	defer ts.Close()

	get := func(path string) (int, string) {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, string(body)
	}

	code, body := get("/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"healthy"`)

	code, _ = get("/ready")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	obs.SetReady(true)
	code, _ = get("/ready")
	assert.Equal(t, http.StatusOK, code)

	code, body = get("/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "arxmltool_models_open 1")
	assert.Contains(t, body, `arxmltool_grpc_requests_total{method="/arxml.v1.ArxmlService/OpenModel",status="OK"} 1`)
}

func TestGrpcInterceptorLogging(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewLogger(logger.Config{Level: "info", Output: &buf})
	intercept := GrpcMetricsInterceptor(metrics.NewMetrics(prometheus.NewRegistry()), log)

	info := &grpc.UnaryServerInfo{FullMethod: MethodStats}
	_, err := intercept(context.Background(), nil, info, func(context.Context, any) (any, error) {
		return nil, status.Error(codes.NotFound, "no such model")
	})
	requireCode(t, err, codes.NotFound)

	assert.Equal(t, 1, strings.Count(buf.String(), `"method"`))
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "grpc", line["component"])
	assert.Equal(t, MethodStats, line["method"])
	assert.Equal(t, "error", line["level"])
	assert.Contains(t, line["error"], "no such model")
}
