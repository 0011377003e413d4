package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Start requests the daemon to start processing.
func (c *Client) Start() (*StartResponse, error) {
	var resp StartResponse
	if err := c.client.Call("Abstractor.Start", StartRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop requests the daemon to stop processing.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.client.Call("Abstractor.Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Abstractor.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SearchList returns searches optionally filtered by statuses.
func (c *Client) SearchList(statuses []string) (*SearchListResponse, error) {
	var resp SearchListResponse
	req := SearchListRequest{Statuses: statuses}
	if err := c.client.Call("Abstractor.SearchList", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SearchDescribe returns details for a single search.
func (c *Client) SearchDescribe(id int64) (*SearchDescribeResponse, error) {
	var resp SearchDescribeResponse
	req := SearchDescribeRequest{ID: id}
	if err := c.client.Call("Abstractor.SearchDescribe", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Submit registers a new title search with the daemon.
func (c *Client) Submit(req SubmitRequest) (*SubmitResponse, error) {
	var resp SubmitResponse
	if err := c.client.Call("Abstractor.Submit", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Trigger queues a pending search for processing.
func (c *Client) Trigger(id int64) (*SearchActionResponse, error) {
	return c.action("Abstractor.Trigger", id)
}

// Retry requeues a failed search to resume from its checkpoint.
func (c *Client) Retry(id int64) (*SearchActionResponse, error) {
	return c.action("Abstractor.Retry", id)
}

// Cancel cancels a search.
func (c *Client) Cancel(id int64) (*SearchActionResponse, error) {
	return c.action("Abstractor.Cancel", id)
}

// PartialComplete closes a failed search with its partial results.
func (c *Client) PartialComplete(id int64) (*SearchActionResponse, error) {
	return c.action("Abstractor.PartialComplete", id)
}

func (c *Client) action(method string, id int64) (*SearchActionResponse, error) {
	var resp SearchActionResponse
	if err := c.client.Call(method, SearchActionRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Errors retrieves the error report and recovery options for a search.
func (c *Client) Errors(id int64) (*ErrorsResponse, error) {
	var resp ErrorsResponse
	if err := c.client.Call("Abstractor.Errors", ErrorsRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ChainAnalysis retrieves the chain of title analysis for a search.
func (c *Client) ChainAnalysis(id int64) (*ChainAnalysisResponse, error) {
	var resp ChainAnalysisResponse
	if err := c.client.Call("Abstractor.ChainAnalysis", ChainAnalysisRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Encumbrances retrieves graded encumbrances for a search.
func (c *Client) Encumbrances(id int64) (*EncumbrancesResponse, error) {
	var resp EncumbrancesResponse
	if err := c.client.Call("Abstractor.Encumbrances", EncumbrancesRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueClear removes all searches from the queue.
func (c *Client) QueueClear() (*QueueClearResponse, error) {
	var resp QueueClearResponse
	if err := c.client.Call("Abstractor.QueueClear", QueueClearRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueClearCompleted removes only completed searches from the queue.
func (c *Client) QueueClearCompleted() (*QueueClearCompletedResponse, error) {
	var resp QueueClearCompletedResponse
	if err := c.client.Call("Abstractor.QueueClearCompleted", QueueClearCompletedRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueReset requeues searches stuck mid-stage so they resume from checkpoint.
func (c *Client) QueueReset() (*QueueResetResponse, error) {
	var resp QueueResetResponse
	if err := c.client.Call("Abstractor.QueueReset", QueueResetRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LogTail returns log lines from the daemon.
func (c *Client) LogTail(req LogTailRequest) (*LogTailResponse, error) {
	var resp LogTailResponse
	if err := c.client.Call("Abstractor.LogTail", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueHealth returns queue diagnostics.
func (c *Client) QueueHealth() (*QueueHealthResponse, error) {
	var resp QueueHealthResponse
	if err := c.client.Call("Abstractor.QueueHealth", QueueHealthRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DatabaseHealth retrieves detailed database diagnostics.
func (c *Client) DatabaseHealth() (*DatabaseHealthResponse, error) {
	var resp DatabaseHealthResponse
	if err := c.client.Call("Abstractor.DatabaseHealth", DatabaseHealthRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TestNotification triggers a notification test via the daemon.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	var resp TestNotificationResponse
	if err := c.client.Call("Abstractor.TestNotification", TestNotificationRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
