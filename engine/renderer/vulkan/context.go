package vulkan

import (
	"fmt"
	"runtime"
	"sync"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/multibatch/engine/core"
)

var loaderOnce sync.Once
var loaderErr error

type VulkanContext struct {
	Instance  vk.Instance
	Allocator *vk.AllocationCallbacks

	Device *VulkanDevice
	Pool   *VulkanLockPool

	// Command buffer and fence used to record and submit frames when the
	// host does not supply its own command buffer.
	CommandBuffer *VulkanCommandBuffer
	Fence         *VulkanFence

	debugCallback vk.DebugReportCallback
}

// NewHeadlessContext loads the Vulkan library and creates an instance, a
// device able to draw multiple indirect commands in one call, and the
// command pool of its graphics queue. No surface or swapchain is created.
func NewHeadlessContext(appName string, debug bool) (*VulkanContext, error) {
	loaderOnce.Do(func() {
		if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
			loaderErr = fmt.Errorf("failed to load Vulkan library: %w", err)
			return
		}
		loaderErr = vk.Init()
	})
	if loaderErr != nil {
		return nil, loaderErr
	}

	context := &VulkanContext{
		Device: &VulkanDevice{GraphicsQueueIndex: -1},
		Pool:   NewVulkanLockPool(),
	}
	if err := context.createInstance(appName, debug); err != nil {
		return nil, err
	}
	core.LogInfo("Vulkan Instance created.")

	requirements := &VulkanPhysicalDeviceRequirements{
		Graphics:          true,
		MultiDrawIndirect: true,
	}
	if err := DeviceCreate(context, requirements); err != nil {
		context.Destroy()
		return nil, err
	}

	cb, err := NewVulkanCommandBuffer(context, context.Device.GraphicsCommandPool, true)
	if err != nil {
		context.Destroy()
		return nil, err
	}
	context.CommandBuffer = cb

	fence, err := NewFence(context, true)
	if err != nil {
		context.Destroy()
		return nil, err
	}
	context.Fence = fence
	return context, nil
}

func (vc *VulkanContext) createInstance(appName string, debug bool) error {
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 1, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(appName),
		PEngineName:        VulkanSafeString("Multibatch"),
	}
	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	extensions := []string{}
	if runtime.GOOS == "darwin" {
		extensions = append(extensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		createInfo.Flags |= 1
	}

	// Validation layers are only enabled in debug mode and only if installed.
	layers := []string{}
	if debug {
		var availableLayerCount uint32
		if res := vk.EnumerateInstanceLayerProperties(&availableLayerCount, nil); res != vk.Success {
			return vulkanError("vkEnumerateInstanceLayerProperties", res)
		}
		availableLayers := make([]vk.LayerProperties, availableLayerCount)
		if res := vk.EnumerateInstanceLayerProperties(&availableLayerCount, availableLayers); res != vk.Success {
			return vulkanError("vkEnumerateInstanceLayerProperties", res)
		}
		for i := range availableLayers {
			availableLayers[i].Deref()
			name := availableLayers[i].LayerName[:]
			if vk.ToString(name[:FindFirstZeroInByteArray(name)+1]) == "VK_LAYER_KHRONOS_validation" {
				layers = append(layers, "VK_LAYER_KHRONOS_validation")
				core.LogInfo("Validation layers enabled.")
				break
			}
		}
		if len(layers) == 0 {
			core.LogWarn("VK_LAYER_KHRONOS_validation requested but not installed.")
		} else {
			extensions = append(extensions, vk.ExtDebugReportExtensionName)
		}
	}
	createInfo.EnabledExtensionCount = uint32(len(extensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(extensions)
	createInfo.EnabledLayerCount = uint32(len(layers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(layers)

	var instance vk.Instance
	if err := vk.Error(vk.CreateInstance(&createInfo, vc.Allocator, &instance)); err != nil {
		return fmt.Errorf("failed in creating the Vulkan Instance: %w", err)
	}
	vc.Instance = instance
	if err := vk.InitInstance(vc.Instance); err != nil {
		return err
	}

	if len(layers) > 0 {
		core.LogDebug("Creating Vulkan debugger...")
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: dbgCallbackFunc,
		}
		var dbg vk.DebugReportCallback
		if err := vk.Error(vk.CreateDebugReportCallback(vc.Instance, &debugCreateInfo, nil, &dbg)); err != nil {
			core.LogWarn("vk.CreateDebugReportCallback failed with %s", err)
			return nil
		}
		vc.debugCallback = dbg
	}
	return nil
}

// FindMemoryIndex returns the first memory type allowed by typeFilter that
// has all of propertyFlags.
func (vc *VulkanContext) FindMemoryIndex(typeFilter, propertyFlags uint32) (uint32, bool) {
	memoryProperties := vc.Device.Memory
	for i := uint32(0); i < memoryProperties.MemoryTypeCount; i++ {
		// Check each memory type to see if its bit is set to 1.
		memoryProperties.MemoryTypes[i].Deref()
		if (typeFilter&(1<<i)) != 0 && (uint32(memoryProperties.MemoryTypes[i].PropertyFlags)&propertyFlags) == propertyFlags {
			return i, true
		}
	}
	core.LogWarn("Unable to find suitable memory type!")
	return 0, false
}

// Destroy tears down everything NewHeadlessContext created, in reverse order.
func (vc *VulkanContext) Destroy() {
	if vc.Device.LogicalDevice != nil {
		vk.DeviceWaitIdle(vc.Device.LogicalDevice)
	}
	if vc.Fence != nil {
		vc.Fence.FenceDestroy(vc)
		vc.Fence = nil
	}
	if vc.CommandBuffer != nil {
		vc.CommandBuffer.Free(vc, vc.Device.GraphicsCommandPool)
		vc.CommandBuffer = nil
	}
	if vc.Device.LogicalDevice != nil || vc.Device.GraphicsCommandPool != vk.NullCommandPool {
		DeviceDestroy(vc)
	}
	if vc.debugCallback != vk.NullDebugReportCallback {
		vk.DestroyDebugReportCallback(vc.Instance, vc.debugCallback, nil)
		vc.debugCallback = vk.NullDebugReportCallback
	}
	if vc.Instance != nil {
		core.LogInfo("Destroying Vulkan instance...")
		vk.DestroyInstance(vc.Instance, vc.Allocator)
		vc.Instance = nil
	}
}
