package contract

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/hyperledger/fabric-chaincode-go/pkg/cid"
	"github.com/hyperledger/fabric-chaincode-go/shim"
	"github.com/hyperledger/fabric-protos-go/ledger/queryresult"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// Test identities. The peer authenticates callers; the contract only ever
// sees these full X.509 id strings.
const (
	adminID     = "x509::CN=admin,OU=admin::CN=ca.org1"
	producer1ID = "x509::CN=producer1,OU=client::CN=ca.org1"
	producer2ID = "x509::CN=producer2,OU=client::CN=ca.org1"
	buyerID     = "x509::CN=buyer,OU=client::CN=ca.org2"
	strangerID  = "x509::CN=stranger,OU=client::CN=ca.org2"
)

var testTxTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// recordedEvent captures a SetEvent call for assertions.
type recordedEvent struct {
	name    string
	payload map[string]interface{}
}

// mockStub is an in-memory world state implementing just the subset of
// shim.ChaincodeStubInterface the contract uses. Iteration order over
// partial composite keys is lexicographic, matching the peer.
type mockStub struct {
	shim.ChaincodeStubInterface
	state  map[string][]byte
	events []recordedEvent
}

func newMockStub() *mockStub {
	return &mockStub{state: map[string][]byte{}}
}

func (ms *mockStub) GetState(key string) ([]byte, error) {
	value, ok := ms.state[key]
	if !ok {
		return nil, nil
	}
	return value, nil
}

func (ms *mockStub) PutState(key string, value []byte) error {
	ms.state[key] = value
	return nil
}

func (ms *mockStub) DelState(key string) error {
	delete(ms.state, key)
	return nil
}

// Composite key layout mirrors the shim: U+0000 namespace prefix, object
// type and each attribute terminated by U+0000.
func (ms *mockStub) CreateCompositeKey(objectType string, attributes []string) (string, error) {
	key := string(rune(0)) + objectType + string(rune(0))
	for _, attr := range attributes {
		key += attr + string(rune(0))
	}
	return key, nil
}

func (ms *mockStub) GetStateByPartialCompositeKey(objectType string, attributes []string) (shim.StateQueryIteratorInterface, error) {
	prefix, _ := ms.CreateCompositeKey(objectType, attributes)
	keys := []string{}
	for key := range ms.state {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	results := make([]*queryresult.KV, 0, len(keys))
	for _, key := range keys {
		results = append(results, &queryresult.KV{Key: key, Value: ms.state[key]})
	}
	return &mockIterator{results: results}, nil
}

func (ms *mockStub) GetTxTimestamp() (*timestamppb.Timestamp, error) {
	return timestamppb.New(testTxTime), nil
}

func (ms *mockStub) SetEvent(name string, payload []byte) error {
	var decoded map[string]interface{}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return err
	}
	ms.events = append(ms.events, recordedEvent{name: name, payload: decoded})
	return nil
}

func (ms *mockStub) lastEvent() *recordedEvent {
	if len(ms.events) == 0 {
		return nil
	}
	return &ms.events[len(ms.events)-1]
}

type mockIterator struct {
	results []*queryresult.KV
	next    int
}

func (mi *mockIterator) HasNext() bool {
	return mi.next < len(mi.results)
}

func (mi *mockIterator) Next() (*queryresult.KV, error) {
	kv := mi.results[mi.next]
	mi.next++
	return kv, nil
}

func (mi *mockIterator) Close() error {
	return nil
}

// mockClientIdentity reports a configurable caller identity.
type mockClientIdentity struct {
	cid.ClientIdentity
	id    string
	mspID string
}

func (mc *mockClientIdentity) GetID() (string, error) {
	return mc.id, nil
}

func (mc *mockClientIdentity) GetMSPID() (string, error) {
	return mc.mspID, nil
}

// mockContext is a transaction context over the mock stub. Switching the
// caller between invocations models successive transactions from different
// wallets against the same ledger.
type mockContext struct {
	stub   *mockStub
	client *mockClientIdentity
}

func newMockContext(callerID string) *mockContext {
	return &mockContext{
		stub:   newMockStub(),
		client: &mockClientIdentity{id: callerID, mspID: "Org1MSP"},
	}
}

func (mt *mockContext) GetStub() shim.ChaincodeStubInterface {
	return mt.stub
}

func (mt *mockContext) GetClientIdentity() cid.ClientIdentity {
	return mt.client
}

// as switches the caller for subsequent invocations.
func (mt *mockContext) as(callerID string) *mockContext {
	mt.client.id = callerID
	return mt
}
