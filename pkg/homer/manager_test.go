// Copyright 2025 The Eventplane Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package homer

import (
	"context"
	"net"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/hltonline/eventplane/pkg/types"
)

var _ = Describe("Connection Manager", func() {
	var (
		ctx     context.Context
		lister  *fakeLister
		manager *Manager
		first   *fakeSource
		second  *fakeSource
	)

	accept := func(s *fakeSource) net.Conn {
		var conn net.Conn
		Eventually(s.accepted, time.Second).Should(Receive(&conn))
		return conn
	}

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		first, err = newFakeSource()
		Expect(err).NotTo(HaveOccurred())
		second, err = newFakeSource()
		Expect(err).NotTo(HaveOccurred())
		lister = &fakeLister{}
		manager = NewManager(lister, &Config{ReadTimeout: 100 * time.Millisecond})
	})

	AfterEach(func() {
		manager.Disconnect()
		first.Close()
		second.Close()
	})

	Context("when connecting", func() {
		It("should fail with ErrNoSelection when nothing is selected", func() {
			unselected := first.descriptor("TPC")
			unselected.Selected = false
			lister.set(true, unselected)

			err := manager.Connect(ctx, AllDetectors)
			Expect(err).To(MatchError(ErrNoSelection))
			Expect(manager.State()).To(Equal(Disconnected))
		})

		It("should fail with ErrNoSelection when no source is in scope", func() {
			lister.set(false, first.descriptor("TPC"))
			Expect(manager.Connect(ctx, DetectorScope("ITS"))).To(MatchError(ErrNoSelection))
		})

		It("should fail with ErrIO when every reader fails to open", func() {
			down, err := closedAddress()
			Expect(err).NotTo(HaveOccurred())
			lister.set(true, down)

			Expect(manager.Connect(ctx, AllDetectors)).To(MatchError(ErrIO))
			Expect(manager.IsConnected()).To(BeFalse())
		})

		It("should connect to the reachable subset and clear the changed flag", func() {
			down, err := closedAddress()
			Expect(err).NotTo(HaveOccurred())
			lister.set(true, down, first.descriptor("TPC"))

			Expect(manager.Connect(ctx, AllDetectors)).To(Succeed())
			Expect(manager.State()).To(Equal(Connected))
			Expect(lister.StateHasChanged()).To(BeFalse())
			accept(first)
		})

		It("should keep a selection change made while dialing", func() {
			lister.set(true, first.descriptor("TPC"))
			dialer := &net.Dialer{}
			manager = NewManager(lister, &Config{
				ReadTimeout: 100 * time.Millisecond,
				Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
					lister.set(true, first.descriptor("TPC"), second.descriptor("ITS"))
					return dialer.DialContext(ctx, network, address)
				},
			})

			Expect(manager.Connect(ctx, AllDetectors)).To(Succeed())
			accept(first)
			Expect(lister.StateHasChanged()).To(BeTrue())
		})

		It("should only open readers for sources in scope", func() {
			lister.set(false, first.descriptor("TPC"), second.descriptor("ITS"))

			Expect(manager.Connect(ctx, DetectorScope("its"))).To(Succeed())
			accept(second)
			Consistently(first.accepted, 100*time.Millisecond).ShouldNot(Receive())
		})

		It("should be a no-op when already connected", func() {
			lister.set(false, first.descriptor("TPC"))
			Expect(manager.Connect(ctx, AllDetectors)).To(Succeed())
			accept(first)

			Expect(manager.Connect(ctx, AllDetectors)).To(Succeed())
			Consistently(first.accepted, 100*time.Millisecond).ShouldNot(Receive())
		})
	})

	Context("when reading events", func() {
		It("should merge one event from every reader", func() {
			lister.set(false, first.descriptor("TPC"), second.descriptor("ITS"))
			Expect(manager.Connect(ctx, AllDetectors)).To(Succeed())
			a, b := accept(first), accept(second)

			Expect(WriteEvent(a, &types.Event{ID: 7, Blocks: []types.Block{testBlock("CLUS", "TPC", "a")}})).To(Succeed())
			Expect(WriteEvent(b, &types.Event{ID: 9, Blocks: []types.Block{
				testBlock("TRAK", "ITS", "b"),
				testBlock("VRTX", "ITS", "c"),
			}})).To(Succeed())

			handle, err := manager.NextEvent()
			Expect(err).NotTo(HaveOccurred())
			Expect(handle.ID()).To(Equal(uint64(7)))
			Expect(handle.BlockCount()).To(Equal(3))
			Expect(string(handle.GetBlock(0).Payload)).To(Equal("a"))
			Expect(handle.GetBlock(2).Type.String()).To(Equal("VRTX"))
			Expect(handle.GetBlock(3).IsZero()).To(BeTrue())
			Expect(handle.GetBlock(-1).IsZero()).To(BeTrue())
		})

		It("should report a temporary timeout when no data arrives", func() {
			lister.set(false, first.descriptor("TPC"))
			Expect(manager.Connect(ctx, AllDetectors)).To(Succeed())
			accept(first)

			_, err := manager.NextEvent()
			Expect(err).To(MatchError(ErrTimeout))
			Expect(IsTemporaryError(err)).To(BeTrue())
			Expect(manager.IsConnected()).To(BeTrue())
		})

		It("should report ErrClosed and disconnect when the source goes away", func() {
			lister.set(false, first.descriptor("TPC"))
			Expect(manager.Connect(ctx, AllDetectors)).To(Succeed())
			Expect(accept(first).Close()).To(Succeed())

			_, err := manager.NextEvent()
			Expect(err).To(MatchError(ErrClosed))
			Expect(manager.State()).To(Equal(Disconnected))
		})

		It("should report ErrClosed for a corrupt stream", func() {
			lister.set(false, first.descriptor("TPC"))
			Expect(manager.Connect(ctx, AllDetectors)).To(Succeed())
			conn := accept(first)
			_, err := conn.Write([]byte("GARBAGE-GARBAGE-GARBAGE"))
			Expect(err).NotTo(HaveOccurred())

			_, err = manager.NextEvent()
			Expect(err).To(MatchError(ErrClosed))
		})

		It("should unblock a pending read on Disconnect", func() {
			manager = NewManager(lister, &Config{ReadTimeout: 10 * time.Second})
			lister.set(false, first.descriptor("TPC"))
			Expect(manager.Connect(ctx, AllDetectors)).To(Succeed())
			accept(first)

			errs := make(chan error, 1)
			go func() {
				_, err := manager.NextEvent()
				errs <- err
			}()
			Consistently(errs, 50*time.Millisecond).ShouldNot(Receive())

			manager.Disconnect()
			var err error
			Eventually(errs, time.Second).Should(Receive(&err))
			Expect(err).To(MatchError(ErrClosed))
		})

		It("should return ErrClosed when not connected", func() {
			_, err := manager.NextEvent()
			Expect(err).To(MatchError(ErrClosed))
		})
	})

	Context("when the selection changes", func() {
		It("should invalidate handles on reconnect", func() {
			lister.set(false, first.descriptor("TPC"))
			Expect(manager.Connect(ctx, AllDetectors)).To(Succeed())
			Expect(WriteEvent(accept(first), &types.Event{ID: 1, Blocks: []types.Block{testBlock("CLUS", "TPC", "x")}})).To(Succeed())
			handle, err := manager.NextEvent()
			Expect(err).NotTo(HaveOccurred())
			Expect(handle.Valid()).To(BeTrue())

			lister.set(true, second.descriptor("ITS"))
			Expect(manager.Reconnect(ctx, AllDetectors)).To(Succeed())
			accept(second)

			Expect(handle.Valid()).To(BeFalse())
			Expect(handle.BlockCount()).To(BeZero())
			Expect(handle.GetBlock(0).IsZero()).To(BeTrue())
			Expect(handle.Blocks()).To(BeNil())
		})

		It("should keep the current connection when the new selection is empty", func() {
			lister.set(false, first.descriptor("TPC"))
			Expect(manager.Connect(ctx, AllDetectors)).To(Succeed())
			accept(first)

			lister.set(true)
			Expect(manager.Reconnect(ctx, AllDetectors)).To(MatchError(ErrNoSelection))
			Expect(manager.IsConnected()).To(BeTrue())
		})

		It("should reconnect on SyncSelection only when the registry changed", func() {
			lister.set(true, first.descriptor("TPC"))
			Expect(manager.SyncSelection(ctx, AllDetectors)).To(Succeed())
			accept(first)

			Expect(manager.SyncSelection(ctx, AllDetectors)).To(Succeed())
			Consistently(first.accepted, 100*time.Millisecond).ShouldNot(Receive())

			lister.set(true, first.descriptor("TPC"), second.descriptor("ITS"))
			Expect(manager.SyncSelection(ctx, AllDetectors)).To(Succeed())
			accept(first)
			accept(second)
			Expect(lister.StateHasChanged()).To(BeFalse())
		})
	})

	It("should track the number of open readers", func() {
		lister.set(false, first.descriptor("TPC"), second.descriptor("ITS"))
		Expect(manager.Connect(ctx, AllDetectors)).To(Succeed())
		accept(first)
		accept(second)
		Expect(gaugeValue(openReaders)).To(Equal(2.0))

		manager.Disconnect()
		Expect(gaugeValue(openReaders)).To(BeZero())
	})

	It("should be safe to disconnect repeatedly", func() {
		manager.Disconnect()
		manager.Disconnect()
		Expect(manager.State()).To(Equal(Disconnected))
	})
})

var _ = Describe("DetectorScope", func() {
	DescribeTable("matching origins",
		func(scope DetectorScope, origin string, expected bool) {
			Expect(scope.Matches(origin)).To(Equal(expected))
		},
		Entry("empty scope", DetectorScope(""), "TPC", true),
		Entry("ALL scope", AllDetectors, "ITS", true),
		Entry("lower case all", DetectorScope("all"), "ITS", true),
		Entry("same origin", DetectorScope("TPC"), "TPC", true),
		Entry("case-insensitive origin", DetectorScope("tpc"), "TPC", true),
		Entry("other origin", DetectorScope("TPC"), "ITS", false),
	)
})

