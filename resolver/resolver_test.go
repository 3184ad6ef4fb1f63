package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeCaller struct {
	calls  atomic.Int32
	result []byte
	err    error
}

func (f *fakeCaller) CallFunction(ctx context.Context, accountID, method string, args []byte) ([]byte, error) {
	f.calls.Add(1)
	if accountID != "aurora" || method != "get_erc20_from_nep141" {
		return nil, errors.New("unexpected call")
	}
	return f.result, f.err
}

func TestMirrorAddressCachesHit(t *testing.T) {
	addr := make([]byte, 20)
	addr[19] = 0xab
	f := &fakeCaller{result: addr}
	r := NewAddressResolver(f, "aurora")

	got, ok := r.MirrorAddress(context.Background(), "tokenA")
	require.True(t, ok)
	require.Equal(t, "00000000000000000000000000000000000000ab", got)

	got, ok = r.MirrorAddress(context.Background(), "tokenA")
	require.True(t, ok)
	require.Equal(t, "00000000000000000000000000000000000000ab", got)
	require.Equal(t, int32(1), f.calls.Load())
}

func TestMirrorAddressFailureNotCached(t *testing.T) {
	f := &fakeCaller{err: errors.New("ERC20 not deployed")}
	r := NewAddressResolver(f, "aurora")

	_, ok := r.MirrorAddress(context.Background(), "tokenB")
	require.False(t, ok)

	f.err = nil
	f.result = []byte{0x01, 0x02}
	got, ok := r.MirrorAddress(context.Background(), "tokenB")
	require.True(t, ok)
	require.Equal(t, "0102", got)
	require.Equal(t, int32(2), f.calls.Load())
}

func TestMirrorAddressEmptyResult(t *testing.T) {
	f := &fakeCaller{result: []byte{}}
	r := NewAddressResolver(f, "aurora")

	_, ok := r.MirrorAddress(context.Background(), "tokenC")
	require.False(t, ok)
	_, ok = r.MirrorAddress(context.Background(), "tokenC")
	require.False(t, ok)
	require.Equal(t, int32(2), f.calls.Load())
}

type fakeViewer struct {
	mu    sync.Mutex
	calls map[string]int
	meta  map[string]Metadata
}

func (f *fakeViewer) ViewFunction(ctx context.Context, contractID, method string, args interface{}, out interface{}) error {
	f.mu.Lock()
	f.calls[contractID]++
	f.mu.Unlock()
	md, ok := f.meta[contractID]
	if !ok {
		return errors.New("account does not exist")
	}
	raw, _ := json.Marshal(md)
	return json.Unmarshal(raw, out)
}

func TestMetadataCache(t *testing.T) {
	f := &fakeViewer{
		calls: map[string]int{},
		meta: map[string]Metadata{
			"tokenA": {Spec: "ft-1.0.0", Name: "Token A", Symbol: "TKA", Decimals: 6},
		},
	}
	m := NewMetadataCache(f)
	ctx := context.Background()

	md, err := m.Metadata(ctx, "tokenA")
	require.NoError(t, err)
	require.Equal(t, "TKA", md.Symbol)
	require.Equal(t, 6, md.Decimals)

	_, err = m.Metadata(ctx, "tokenA")
	require.NoError(t, err)
	require.Equal(t, 1, f.calls["tokenA"])

	_, err = m.Metadata(ctx, "missing")
	require.Error(t, err)
	_, err = m.Metadata(ctx, "missing")
	require.Error(t, err)
	require.Equal(t, 2, f.calls["missing"])
}

func TestCacheConcurrentFetchSharesCall(t *testing.T) {
	c := NewCache[int]()
	var fetches atomic.Int32
	release := make(chan struct{})

	vals := make([]int, 8)
	errs := make([]error, 8)
	var wg sync.WaitGroup
	for i := range vals {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			vals[i], errs[i] = c.GetOrFetch(context.Background(), "k", func(ctx context.Context) (int, error) {
				fetches.Add(1)
				<-release
				return 42, nil
			})
		}()
	}
	close(release)
	wg.Wait()

	for i := range vals {
		require.NoError(t, errs[i])
		require.Equal(t, 42, vals[i])
	}
	require.LessOrEqual(t, fetches.Load(), int32(8))
	v, ok := c.Get("k")
	require.True(t, ok)
	require.Equal(t, 42, v)
}

func TestCacheFetchOutlivesCancelledCaller(t *testing.T) {
	c := NewCache[int]()
	started := make(chan struct{})
	release := make(chan struct{})
	first, cancel := context.WithCancel(context.Background())

	firstErr := make(chan error, 1)
	go func() {
		_, err := c.GetOrFetch(first, "k", func(ctx context.Context) (int, error) {
			close(started)
			<-release
			return 42, ctx.Err()
		})
		firstErr <- err
	}()
	<-started
	cancel()
	require.ErrorIs(t, <-firstErr, context.Canceled)

	type result struct {
		v   int
		err error
	}
	second := make(chan result, 1)
	go func() {
		v, err := c.GetOrFetch(context.Background(), "k", func(ctx context.Context) (int, error) {
			return 0, errors.New("fetched twice")
		})
		second <- result{v, err}
	}()
	close(release)

	res := <-second
	require.NoError(t, res.err)
	require.Equal(t, 42, res.v)
}
