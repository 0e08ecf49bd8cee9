// Package ibgw 实现经由本地网关 socket 的有状态券商后端。
// 与 REST 后端不同：这里必须维护连接生命周期
// （Disconnected -> Connecting -> Connected），并在网关掉线后自愈。
package ibgw

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/logger"
	"github.com/kittureddy2000/samaanai-stocks-sub000/internal/pkg/retry"
)

type connState int

const (
	stateDisconnected connState = iota
	stateConnecting
	stateConnected
)

// 自动分配的 clientId 区间，避开手工会话常用的小号段。
const (
	clientIDFloor = 9000
	clientIDSpan  = 1000
)

// 会话失效后的自动重连：2 次尝试，base * 2^attempt 退避。
const (
	reconnectRetries = 2
	reconnectBase    = time.Second
)

// Gateway 管理到网关进程的单条 socket 连接。
// 协议为按行分隔的 JSON 帧：请求 {id, method, params}，响应 {id, ok, error, result}。
type Gateway struct {
	host           string
	port           int
	clientID       int
	connectTimeout time.Duration
	settleWait     time.Duration

	// dial 可在测试中替换为 net.Pipe 工厂。
	dial func(ctx context.Context) (net.Conn, error)

	// retryBase 重连退避基数，测试中可调小。
	retryBase time.Duration

	mu     sync.Mutex
	state  connState
	conn   net.Conn
	reader *bufio.Reader
	nextID int64
}

// NewGateway 构造网关后端连接管理器。clientID 为 0 时随机分配。
func NewGateway(host string, port, clientID int, connectTimeout, settleWait time.Duration) *Gateway {
	if clientID <= 0 {
		clientID = clientIDFloor + rand.Intn(clientIDSpan)
	}
	if connectTimeout <= 0 {
		connectTimeout = 10 * time.Second
	}
	g := &Gateway{
		host:           host,
		port:           port,
		clientID:       clientID,
		connectTimeout: connectTimeout,
		settleWait:     settleWait,
		retryBase:      reconnectBase,
	}
	g.dial = func(ctx context.Context) (net.Conn, error) {
		d := net.Dialer{Timeout: g.connectTimeout}
		return d.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", g.host, g.port))
	}
	return g
}

type request struct {
	ID     int64          `json:"id"`
	Method string         `json:"method"`
	Params map[string]any `json:"params,omitempty"`
}

type response struct {
	ID     int64           `json:"id"`
	OK     bool            `json:"ok"`
	Error  string          `json:"error,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
}

// Connect 单次连接尝试：拨号 + 握手，失败即返回错误。
func (g *Gateway) Connect(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.connectLocked(ctx)
}

func (g *Gateway) connectLocked(ctx context.Context) error {
	if g.state == stateConnected {
		return nil
	}
	g.state = stateConnecting
	ctx, cancel := context.WithTimeout(ctx, g.connectTimeout)
	defer cancel()

	conn, err := g.dial(ctx)
	if err != nil {
		g.state = stateDisconnected
		return fmt.Errorf("连接网关 %s:%d 失败: %w", g.host, g.port, err)
	}
	g.conn = conn
	g.reader = bufio.NewReader(conn)

	if _, err := g.callLocked(ctx, "connect", map[string]any{"client_id": g.clientID}); err != nil {
		conn.Close()
		g.conn = nil
		g.reader = nil
		g.state = stateDisconnected
		return fmt.Errorf("网关握手失败: %w", err)
	}
	g.state = stateConnected
	logger.Infof("[ibgw] ✓ 已连接网关 %s:%d clientId=%d", g.host, g.port, g.clientID)
	return nil
}

// ConnectWithRetry 指数退避重连：base * 2^attempt。启动路径使用。
func (g *Gateway) ConnectWithRetry(ctx context.Context, maxRetries int, base time.Duration) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.connectWithRetryLocked(ctx, maxRetries, base); err != nil {
		return fmt.Errorf("网关重连 %d 次后仍失败: %w", maxRetries, err)
	}
	return nil
}

func (g *Gateway) connectWithRetryLocked(ctx context.Context, maxRetries int, base time.Duration) error {
	p := retry.Policy{
		MaxAttempts: maxRetries,
		Base:        base,
		Factor:      2,
	}
	return p.Do(ctx, g.connectLocked)
}

// Disconnect 幂等断开。
func (g *Gateway) Disconnect() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closeLocked()
}

func (g *Gateway) closeLocked() {
	if g.conn != nil {
		g.conn.Close()
		g.conn = nil
		g.reader = nil
	}
	if g.state != stateDisconnected {
		logger.Infof("[ibgw] 已断开网关连接")
	}
	g.state = stateDisconnected
}

// ensureConnected 校验会话真实可用：状态标记说已连接但 ping 不通时，
// 丢弃陈旧连接并走退避重连（最多 reconnectRetries 次）。
func (g *Gateway) ensureConnected(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state == stateConnected {
		if _, err := g.callLocked(ctx, "ping", nil); err == nil {
			return nil
		}
		logger.Warnf("[ibgw] 连接已失效，丢弃并重连")
		g.closeLocked()
	}

	return g.connectWithRetryLocked(ctx, reconnectRetries, g.retryBase)
}

// call 确保连接后发起一次同步 RPC。
func (g *Gateway) call(ctx context.Context, method string, params map[string]any, out any) error {
	if err := g.ensureConnected(ctx); err != nil {
		return err
	}
	g.mu.Lock()
	raw, err := g.callLocked(ctx, method, params)
	if err != nil {
		// 传输层错误说明连接不可再用，下次调用走重连
		if !isGatewayError(err) {
			g.closeLocked()
		}
		g.mu.Unlock()
		return err
	}
	g.mu.Unlock()
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("解析网关响应失败: %w", err)
	}
	return nil
}

type gatewayError struct{ msg string }

func (e *gatewayError) Error() string { return "网关返回错误: " + e.msg }

func isGatewayError(err error) bool {
	_, ok := err.(*gatewayError)
	return ok
}

func (g *Gateway) callLocked(ctx context.Context, method string, params map[string]any) (json.RawMessage, error) {
	if g.conn == nil {
		return nil, fmt.Errorf("网关未连接")
	}
	g.nextID++
	req := request{ID: g.nextID, Method: method, Params: params}
	buf, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("序列化请求失败: %w", err)
	}
	if dl, ok := ctx.Deadline(); ok {
		g.conn.SetDeadline(dl)
	} else {
		g.conn.SetDeadline(time.Now().Add(15 * time.Second))
	}
	if _, err := g.conn.Write(append(buf, '\n')); err != nil {
		return nil, fmt.Errorf("写入网关失败: %w", err)
	}
	line, err := g.reader.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("读取网关响应失败: %w", err)
	}
	var resp response
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, fmt.Errorf("网关响应不是合法 JSON: %w", err)
	}
	if resp.ID != req.ID {
		return nil, fmt.Errorf("网关响应序号错位: 期望 %d 实际 %d", req.ID, resp.ID)
	}
	if !resp.OK {
		return nil, &gatewayError{msg: strings.TrimSpace(resp.Error)}
	}
	return resp.Result, nil
}
