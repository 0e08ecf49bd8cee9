package ibgw

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"
)

// fakeGateway 用 net.Pipe 模拟网关进程：逐行读请求、按 method 回应。
type fakeGateway struct {
	handle func(req request) (any, string)
}

func (f *fakeGateway) serve(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadBytes('\n')
		if err != nil {
			return
		}
		var req request
		if err := json.Unmarshal(line, &req); err != nil {
			return
		}
		result, errMsg := f.handle(req)
		resp := response{ID: req.ID, OK: errMsg == ""}
		if errMsg != "" {
			resp.Error = errMsg
		} else if result != nil {
			buf, _ := json.Marshal(result)
			resp.Result = buf
		}
		out, _ := json.Marshal(resp)
		if _, err := conn.Write(append(out, '\n')); err != nil {
			return
		}
	}
}

func newTestGateway(t *testing.T, f *fakeGateway) *Gateway {
	t.Helper()
	g := NewGateway("test", 0, 0, time.Second, 0)
	g.dial = func(ctx context.Context) (net.Conn, error) {
		client, server := net.Pipe()
		go f.serve(server)
		return client, nil
	}
	return g
}

func okHandler(req request) (any, string) { return nil, "" }

func TestConnectHandshakeUsesReservedClientID(t *testing.T) {
	var gotID atomic.Int64
	f := &fakeGateway{handle: func(req request) (any, string) {
		if req.Method == "connect" {
			id, _ := req.Params["client_id"].(float64)
			gotID.Store(int64(id))
		}
		return nil, ""
	}}
	g := newTestGateway(t, f)

	if err := g.Connect(context.Background()); err != nil {
		t.Fatalf("连接失败: %v", err)
	}
	id := gotID.Load()
	if id < clientIDFloor || id >= clientIDFloor+clientIDSpan {
		t.Fatalf("clientId 应落在保留区间, got %d", id)
	}
	// 已连接状态下再次 Connect 应为空操作
	if err := g.Connect(context.Background()); err != nil {
		t.Fatalf("重复连接应幂等: %v", err)
	}
}

func TestConnectHandshakeRejected(t *testing.T) {
	f := &fakeGateway{handle: func(req request) (any, string) {
		return nil, "client id already in use"
	}}
	g := newTestGateway(t, f)

	if err := g.Connect(context.Background()); err == nil {
		t.Fatalf("握手被拒应返回错误")
	}
	if g.state != stateDisconnected {
		t.Fatalf("失败后状态应回到 Disconnected, got %v", g.state)
	}
}

func TestEnsureConnectedRecoversStaleTransport(t *testing.T) {
	f := &fakeGateway{handle: okHandler}
	g := newTestGateway(t, f)
	if err := g.Connect(context.Background()); err != nil {
		t.Fatalf("连接失败: %v", err)
	}

	// 模拟网关掉线：关掉当前传输但保留“已连接”标记
	g.conn.Close()

	if err := g.ensureConnected(context.Background()); err != nil {
		t.Fatalf("应丢弃陈旧连接并重连成功: %v", err)
	}
	if g.state != stateConnected {
		t.Fatalf("重连后状态应为 Connected")
	}
	if _, err := g.callLocked(context.Background(), "ping", nil); err != nil {
		t.Fatalf("新连接应可用: %v", err)
	}
}

func TestEnsureConnectedRetriesWithBackoff(t *testing.T) {
	f := &fakeGateway{handle: okHandler}
	var attempts atomic.Int32
	g := newTestGateway(t, f)
	g.retryBase = 0
	inner := g.dial
	g.dial = func(ctx context.Context) (net.Conn, error) {
		if attempts.Add(1) == 1 {
			return nil, errors.New("connection refused")
		}
		return inner(ctx)
	}

	// 断开状态下 ensureConnected 应走重试策略而非单次拨号
	if err := g.ensureConnected(context.Background()); err != nil {
		t.Fatalf("首次拨号失败后应重试成功: %v", err)
	}
	if n := attempts.Load(); n != 2 {
		t.Fatalf("期望拨号 2 次, 实际 %d", n)
	}
	if g.state != stateConnected {
		t.Fatalf("重试成功后状态应为 Connected")
	}
}

func TestDisconnectIdempotent(t *testing.T) {
	f := &fakeGateway{handle: okHandler}
	g := newTestGateway(t, f)
	if err := g.Connect(context.Background()); err != nil {
		t.Fatalf("连接失败: %v", err)
	}
	g.Disconnect()
	g.Disconnect()
	if g.state != stateDisconnected || g.conn != nil {
		t.Fatalf("断开后应无残留连接")
	}
}

func TestConnectWithRetryExhaustsAttempts(t *testing.T) {
	var attempts atomic.Int32
	g := NewGateway("test", 0, 42, time.Second, 0)
	g.dial = func(ctx context.Context) (net.Conn, error) {
		attempts.Add(1)
		return nil, errors.New("connection refused")
	}

	err := g.ConnectWithRetry(context.Background(), 3, 0)
	if err == nil {
		t.Fatalf("全部失败时应返回错误")
	}
	if n := attempts.Load(); n != 3 {
		t.Fatalf("期望恰好尝试 3 次, 实际 %d", n)
	}
}
